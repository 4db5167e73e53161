// Package switcher implements the per-session chunk switcher state machine
// (C6): it observes the sink and the session's position, activates the
// current chunk through the loader, drives the prefetch window, and
// tolerates reconfiguration without losing position.
package switcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/events"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/loader"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/logging"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/sink"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/synthesis"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/ttserrors"
)

// prefetchWindow is the number of upcoming non-blank chunks speculatively
// preloaded ahead of the current position (section 4.6, "populateUpcoming").
const prefetchWindow = 3

// Chunks is the narrow view of the session's chunk array the switcher
// mutates. Session implements this directly over its own slice; the
// interface exists only to avoid switcher importing session (which would
// create an import cycle, since session constructs and owns a Switcher).
type Chunks interface {
	Len() int
	At(i int) chunk.Chunk
	Set(i int, c chunk.Chunk)
}

// Config wires a Switcher to its session.
type Config struct {
	Chunks       Chunks
	Position     *events.Signal[int]
	Sink         sink.Sink
	Loader       *loader.Loader
	ReaderID     loader.ReaderID
	VoiceOptions synthesis.Options
	Clean        chunk.CleanFunc
	// GoToNext is called when the sink reports track completion; it should
	// advance the session's Position signal (section 4.7's goToNext).
	GoToNext func()
}

// Switcher is the C6 state machine for one session.
type Switcher struct {
	chunks       Chunks
	position     *events.Signal[int]
	snk          sink.Sink
	ldr          *loader.Loader
	readerID     loader.ReaderID
	opts         synthesis.Options
	clean        chunk.CleanFunc
	goToNext     func()
	logger       *slog.Logger

	mu           sync.Mutex
	destroyed    bool
	loadingIndex int // index currently awaiting C4.Load, or -1 if none

	isPlaying *events.Signal[bool]
	unsubs    []func()
}

const noLoadingIndex = -1

// New constructs a Switcher and subscribes its reactions. If the sink is
// already playing (a replacement switcher built after a voice change), New
// activates the current chunk itself, since no rising edge will arrive;
// otherwise the first sink.IsPlaying rising edge or position change does.
func New(cfg Config) *Switcher {
	s := &Switcher{
		chunks:       cfg.Chunks,
		position:     cfg.Position,
		snk:          cfg.Sink,
		ldr:          cfg.Loader,
		readerID:     cfg.ReaderID,
		opts:         cfg.VoiceOptions,
		clean:        cfg.Clean,
		goToNext:     cfg.GoToNext,
		logger:       logging.ForService("switcher"),
		loadingIndex: noLoadingIndex,
		isPlaying:    events.NewSignal(false),
	}

	s.unsubs = append(s.unsubs, s.position.Subscribe(func(int) { s.activate() }))
	s.unsubs = append(s.unsubs, s.snk.TrackStatus().Subscribe(func(status sink.TrackStatus) {
		if status == sink.StatusComplete {
			s.goToNext()
			if s.position.Get() == -1 {
				s.isPlaying.Set(false)
			}
		}
	}))
	s.unsubs = append(s.unsubs, s.snk.IsPlaying().Subscribe(func(playing bool) {
		if playing {
			s.isPlaying.Set(true)
			s.mu.Lock()
			alreadyLoading := s.loadingIndex != noLoadingIndex
			s.mu.Unlock()
			if !alreadyLoading {
				s.activate()
			}
		} else {
			s.isPlaying.Set(false)
		}
	}))

	if s.snk.IsPlaying().Get() {
		s.isPlaying.Set(true)
		s.activate()
	}

	return s
}

// IsPlaying is the switcher's external observable (section 4.6).
func (s *Switcher) IsPlaying() *events.Signal[bool] {
	return s.isPlaying
}

// activate implements section 4.6's activate() transition.
func (s *Switcher) activate() {
	s.populateUpcoming()

	idx := s.position.Get()
	if idx < 0 || idx >= s.chunks.Len() {
		s.isPlaying.Set(false)
		return
	}

	c := s.chunks.At(idx)
	if c.IsBlank() {
		s.goToNext()
		return
	}

	s.mu.Lock()
	if s.loadingIndex == idx {
		s.mu.Unlock()
		return
	}
	s.loadingIndex = idx
	s.mu.Unlock()

	c.MarkLoading()
	s.chunks.Set(idx, c)

	future := s.ldr.Load(c.CleanedText, s.opts, s.readerID, idx)
	go s.awaitLoad(idx, future)
}

func (s *Switcher) awaitLoad(idx int, future interface {
	Wait(ctx context.Context) ([]byte, error)
}) {
	bytes, err := future.Wait(context.Background())

	s.mu.Lock()
	if s.destroyed || s.position.Get() != idx {
		s.mu.Unlock()
		return
	}
	s.loadingIndex = noLoadingIndex
	s.mu.Unlock()

	if err != nil {
		s.handleLoadFailure(idx, err)
		return
	}

	c := s.chunks.At(idx)
	c.AttachAudio(bytes)
	s.chunks.Set(idx, c)

	if err := s.snk.SwitchMedia(context.Background(), bytes); err != nil {
		s.logger.Warn("sink switchMedia failed", "index", idx, "err", err)
	}

	go s.decodeForVisualization(idx, bytes)
}

func (s *Switcher) decodeForVisualization(idx int, bytes []byte) {
	decoded, err := s.snk.GetAudioBuffer(context.Background(), bytes)
	if err != nil {
		// DecodeFailure is logged but non-fatal: visualization is disabled,
		// playback proceeds via the sink's own parser (section 7).
		s.logger.Debug("audio decode failed, visualization disabled", "index", idx, "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || s.position.Get() != idx {
		return
	}
	c := s.chunks.At(idx)
	c.MarkDecoded(decoded.Duration)
	s.chunks.Set(idx, c)
}

func (s *Switcher) handleLoadFailure(idx int, err error) {
	c := s.chunks.At(idx)
	info := chunk.FailureInfo{
		Message:    err.Error(),
		OccurredAt: time.Now(),
	}
	if e, ok := ttserrors.AsError(err); ok {
		info.Retryable = e.Retryable()
		if code, ok := e.Context()["httpCode"].(int); ok {
			info.HTTPCode = code
		}
	}
	c.MarkFailed(info, time.Now())
	s.chunks.Set(idx, c)
	s.snk.Pause()
	s.isPlaying.Set(false)
}

// RetryChunk resets the loader's slot for chunk idx so the next activate()
// resubmits it for synthesis instead of hitting the same dead slot (section
// 7's "UI may offer retry" depends on the loader forgetting the permanent
// failure, not just the chunk's own Failed flag).
func (s *Switcher) RetryChunk(idx int) {
	c := s.chunks.At(idx)
	s.ldr.Retry(c.CleanedText, s.opts, s.readerID, idx)
}

// populateUpcoming implements section 4.6: drop stale registrations for
// chunks before the current position, then preload the next prefetchWindow
// non-blank chunks starting at the current position, using each chunk's
// own index as its priority value (so ExpireBefore(readerID, position)
// retires exactly the registrations that have scrolled past).
func (s *Switcher) populateUpcoming() {
	idx := s.position.Get()
	if idx < 0 {
		s.ldr.Expire(s.readerID)
		return
	}
	s.ldr.ExpireBefore(s.readerID, idx)

	submitted := 0
	for i := idx; i < s.chunks.Len() && submitted < prefetchWindow; i++ {
		c := s.chunks.At(i)
		if c.IsBlank() {
			continue
		}
		s.ldr.Preload(c.CleanedText, s.opts, s.readerID, i)
		submitted++
	}
}

// Destroy unsubscribes all reactions, expires the loader registrations for
// this reader, and clears transient per-chunk state so the chunks can be
// reused by a replacement switcher without stale data (section 4.6).
func (s *Switcher) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.ldr.Expire(s.readerID)

	for i := 0; i < s.chunks.Len(); i++ {
		c := s.chunks.At(i)
		c.ClearTransient()
		s.chunks.Set(i, c)
	}
}
