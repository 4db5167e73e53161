// Package session implements the active session (C7): aggregates audio
// metadata, current position, loading/error state, exposes the playback
// control API, and reacts to voice/rate changes by rebuilding its switcher.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/conf"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/editmap"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/events"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/loader"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/sink"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/switcher"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/synthesis"
)

// Config constructs a Session.
type Config struct {
	AudioText    chunk.AudioText
	Loader       *loader.Loader
	Sink         sink.Sink
	Clean        chunk.CleanFunc
	VoiceOptions synthesis.Options
}

// Session is the C7 active session.
type Session struct {
	mu        sync.Mutex
	audioText chunk.AudioText
	clean     chunk.CleanFunc

	ldr *loader.Loader
	snk sink.Sink

	position *events.Signal[int]
	sw       *switcher.Switcher

	opts      synthesis.Options
	voiceHash conf.VoiceHash

	destroyed bool
}

// New constructs a Session positioned at its first chunk, with its initial
// switcher already wired up.
func New(cfg Config) *Session {
	s := &Session{
		audioText: cfg.AudioText,
		clean:     cfg.Clean,
		ldr:       cfg.Loader,
		snk:       cfg.Sink,
		position:  events.NewSignal(0),
		opts:      cfg.VoiceOptions,
		voiceHash: conf.ComputeVoiceHashFields(cfg.VoiceOptions.ModelProvider, cfg.VoiceOptions.Model, cfg.VoiceOptions.Voice, cfg.VoiceOptions.Instructions, cfg.VoiceOptions.ApiURI, cfg.VoiceOptions.ApiKey),
	}
	if len(s.audioText.Chunks) == 0 {
		s.position.Set(-1)
	}
	s.sw = s.newSwitcher()
	return s
}

func (s *Session) newSwitcher() *switcher.Switcher {
	return switcher.New(switcher.Config{
		Chunks:       s,
		Position:     s.position,
		Sink:         s.snk,
		Loader:       s.ldr,
		ReaderID:     loader.ReaderID(uuid.New().String()),
		VoiceOptions: s.opts,
		Clean:        s.clean,
		GoToNext:     s.GoToNext,
	})
}

// --- switcher.Chunks implementation (session owns the slice exclusively) ---

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audioText.Chunks)
}

func (s *Session) At(i int) chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioText.Chunks[i]
}

func (s *Session) Set(i int, c chunk.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioText.Chunks[i] = c
}

// --- control API (section 4.7) ---

// Play starts/resumes playback by starting the sink; the switcher's
// isPlaying-rising-edge reaction drives activation from here.
func (s *Session) Play() {
	s.snk.Play()
}

// Pause pauses the sink.
func (s *Session) Pause() {
	s.snk.Pause()
}

// GoToNext advances position by one, or to -1 ("completed") past the end.
func (s *Session) GoToNext() {
	s.mu.Lock()
	n := len(s.audioText.Chunks)
	cur := s.position.Get()
	next := cur + 1
	if next >= n {
		next = -1
	}
	s.mu.Unlock()
	s.position.Set(next)
}

// GoToPrevious moves to the last chunk from the completed state, or one
// chunk back (clamped at 0) otherwise.
func (s *Session) GoToPrevious() {
	s.mu.Lock()
	n := len(s.audioText.Chunks)
	cur := s.position.Get()
	var next int
	if cur == -1 {
		if n == 0 {
			next = -1
		} else {
			next = n - 1
		}
	} else {
		next = cur - 1
		if next < 0 {
			next = 0
		}
	}
	s.mu.Unlock()
	s.position.Set(next)
}

// Destroy tears down the switcher. The caller (C8) is responsible for not
// using this session again afterward.
func (s *Session) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
	s.sw.Destroy()
}

// OnTextChanged applies a single edit (section 6's editor bridge
// onTextChanged(position, kind, text)).
func (s *Session) OnTextChanged(position int, kind editmap.Kind, text string) {
	s.OnMultiTextChanged([]editmap.Edit{{Position: position, Kind: kind, Text: text}})
}

// OnMultiTextChanged invokes the edit remapper on this session's chunks.
// Per section 4.7, no other action is taken: the switcher's next reaction
// (driven by the next position change) picks up any invalidated current
// chunk's fresh text on its own.
func (s *Session) OnMultiTextChanged(edits []editmap.Edit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	editmap.Apply(edits, s.audioText.Chunks, s.clean)
}

// Reconfigure applies newOpts. Rate changes apply directly to the sink.
// Any change to the voice-hash-relevant fields tears down the current
// switcher and builds a replacement at the same position (section 4.7) —
// this is the mechanism by which cached audio for the old voice is
// abandoned and new-voice audio begins loading seamlessly.
func (s *Session) Reconfigure(newOpts synthesis.Options, rate float64) {
	s.snk.SetRate(rate)

	newHash := conf.ComputeVoiceHashFields(newOpts.ModelProvider, newOpts.Model, newOpts.Voice, newOpts.Instructions, newOpts.ApiURI, newOpts.ApiKey)

	s.mu.Lock()
	unchanged := newHash == s.voiceHash
	s.mu.Unlock()
	if unchanged {
		return
	}

	s.sw.Destroy()

	s.mu.Lock()
	s.opts = newOpts
	s.voiceHash = newHash
	s.mu.Unlock()

	s.sw = s.newSwitcher()
}

// --- read-only observable state ---

// IsPlaying mirrors the switcher's external observable.
func (s *Session) IsPlaying() bool {
	return s.sw.IsPlaying().Get()
}

// Position returns the current position, or -1 if completed.
func (s *Session) Position() int {
	return s.position.Get()
}

// PositionSignal exposes the position observable for the reactive bridge.
func (s *Session) PositionSignal() *events.Signal[int] {
	return s.position
}

// CurrentChunk returns the chunk at the current position, if any.
func (s *Session) CurrentChunk() (chunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.position.Get()
	if pos < 0 || pos >= len(s.audioText.Chunks) {
		return chunk.Chunk{}, false
	}
	return s.audioText.Chunks[pos], true
}

// IsLoading reports whether the active chunk is currently loading.
func (s *Session) IsLoading() bool {
	c, ok := s.CurrentChunk()
	return ok && c.Loading
}

// Error returns the active chunk's failure info, if it has failed.
func (s *Session) Error() *chunk.FailureInfo {
	c, ok := s.CurrentChunk()
	if !ok || !c.Failed {
		return nil
	}
	return c.FailureInfo
}

// Chunks returns a snapshot copy of the session's chunk list.
func (s *Session) Chunks() []chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chunk.Chunk, len(s.audioText.Chunks))
	copy(out, s.audioText.Chunks)
	return out
}

// AudioText returns a snapshot of the session's audio metadata.
func (s *Session) AudioText() chunk.AudioText {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.audioText
	at.Chunks = append([]chunk.Chunk(nil), s.audioText.Chunks...)
	return at
}

// Retry clears the current chunk's failure state after its cooldown has
// elapsed and re-triggers activation, per section 7's "UI may offer retry"
// behavior.
func (s *Session) Retry(cooldown time.Duration) {
	s.mu.Lock()
	pos := s.position.Get()
	if pos < 0 || pos >= len(s.audioText.Chunks) {
		s.mu.Unlock()
		return
	}
	c := s.audioText.Chunks[pos]
	if !c.Failed {
		s.mu.Unlock()
		return
	}
	if time.Since(c.LastFailureAt) < cooldown {
		s.mu.Unlock()
		return
	}
	c.Failed = false
	c.FailureInfo = nil
	s.audioText.Chunks[pos] = c
	sw := s.sw
	s.mu.Unlock()

	// Reset the loader's permanently-failed slot before re-triggering
	// activation: clearing the chunk's own Failed flag isn't enough, since
	// the switcher's next Load call would otherwise hit the same dead slot
	// and fail again immediately.
	sw.RetryChunk(pos)

	// Re-trigger activation through the sink rather than the position
	// signal: the position is unchanged and Set is a no-op for an unchanged
	// value (events.Signal only notifies on change), so Play() supplies the
	// isPlaying rising edge the switcher reacts to (the failure path paused
	// the sink).
	s.snk.Play()
}
