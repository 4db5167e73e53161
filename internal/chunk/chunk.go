// Package chunk defines the Chunk and AudioText data model (C1): the
// speakable unit that owns raw/cleaned text, its character span, and
// lazily-attached audio. Chunks are mutated only by the edit remapper
// (editmap), the chunk switcher (switcher) and the session's retry path;
// this package itself only defines the type and its invariant-preserving
// helpers.
package chunk

import "time"

// FailureInfo describes why a chunk's load failed, without importing the
// loader/ttserrors packages directly (avoids a cycle) — callers convert
// to/from a ttserrors.Error at the boundary.
type FailureInfo struct {
	Message    string
	Retryable  bool
	HTTPCode   int
	OccurredAt time.Time
}

// Chunk is one speakable unit of source text (section 3).
type Chunk struct {
	RawText     string
	CleanedText string
	Start       int
	End         int

	Audio        []byte
	AudioDecoded bool
	Duration     time.Duration

	Loading       bool
	Failed        bool
	FailureInfo   *FailureInfo
	RetryCount    int
	LastFailureAt time.Time
}

// CleanFunc strips markup/frontmatter/code-fences from raw text, producing
// the text that is actually sent to synthesis and that participates in
// cache keys. The editor host owns markup semantics in the original system;
// here it is a pluggable pure function so callers can supply Obsidian/
// Markdown-aware cleaning or a no-op for plain text.
type CleanFunc func(raw string) string

// New constructs a Chunk from a raw text span, computing CleanedText via
// clean. Audio/loading/failure fields start zero-valued per the Lifecycle
// invariant.
func New(rawText string, start int, clean CleanFunc) Chunk {
	return Chunk{
		RawText:     rawText,
		CleanedText: clean(rawText),
		Start:       start,
		End:         start + len(rawText),
	}
}

// IsEmpty reports whether this is a placeholder chunk produced by a
// fully-contained deletion (section 4.2): End == Start and RawText == "".
func (c *Chunk) IsEmpty() bool {
	return c.Start == c.End && c.RawText == ""
}

// IsBlank reports whether the chunk's cleaned text has no speakable
// content (used to skip silent chunks during playback, section 4.6).
func (c *Chunk) IsBlank() bool {
	for _, r := range c.CleanedText {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// SetRawText replaces RawText, recomputes CleanedText, and — per the
// invariant in section 3 — resets all audio/failure state whenever the
// cleaned text actually changes. It reports whether audio was invalidated.
func (c *Chunk) SetRawText(rawText string, clean CleanFunc) (invalidated bool) {
	newCleaned := clean(rawText)
	c.RawText = rawText
	if newCleaned == c.CleanedText {
		c.CleanedText = newCleaned
		return false
	}
	c.CleanedText = newCleaned
	c.resetAudioState()
	return true
}

// resetAudioState clears everything the spec says must be cleared when
// cleaned text changes: audio, audioDecoded, duration, failed, failureInfo,
// loading.
func (c *Chunk) resetAudioState() {
	c.Audio = nil
	c.AudioDecoded = false
	c.Duration = 0
	c.Loading = false
	c.Failed = false
	c.FailureInfo = nil
}

// AttachAudio records successfully synthesized audio bytes, clearing
// loading/failure state.
func (c *Chunk) AttachAudio(bytes []byte) {
	c.Audio = bytes
	c.Loading = false
	c.Failed = false
	c.FailureInfo = nil
}

// MarkDecoded records that Audio was successfully decoded for
// visualization, with the resulting playback duration.
func (c *Chunk) MarkDecoded(duration time.Duration) {
	c.AudioDecoded = true
	c.Duration = duration
}

// MarkLoading flags the chunk as actively fetching audio through the
// loader.
func (c *Chunk) MarkLoading() {
	c.Loading = true
}

// MarkFailed records a failed load attempt.
func (c *Chunk) MarkFailed(info FailureInfo, at time.Time) {
	c.Loading = false
	c.Failed = true
	c.FailureInfo = &info
	c.RetryCount++
	c.LastFailureAt = at
}

// ClearTransient wipes the per-chunk fields a destroyed switcher must clear
// so a replacement switcher does not observe stale data (section 4.6,
// "On destroy").
func (c *Chunk) ClearTransient() {
	c.Audio = nil
	c.AudioDecoded = false
	c.Duration = 0
	c.Loading = false
	c.Failed = false
	c.FailureInfo = nil
}

// AudioText is the ordered sequence of chunks produced for one playback
// session (section 3).
type AudioText struct {
	ID           string
	Filename     string
	FriendlyName string
	CreatedAt    time.Time
	Chunks       []Chunk
}

// TotalSpan returns [first chunk start, last chunk end), or (0,0) if empty.
func (a *AudioText) TotalSpan() (start, end int) {
	if len(a.Chunks) == 0 {
		return 0, 0
	}
	return a.Chunks[0].Start, a.Chunks[len(a.Chunks)-1].End
}
