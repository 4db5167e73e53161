package sink

import (
	"context"
	"sync"
	"time"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/events"
)

// DurationFunc derives a simulated playback duration from decoded audio
// bytes, letting tests control exactly how long each chunk "plays" for.
type DurationFunc func(bytes []byte) time.Duration

// FakeSink is a deterministic in-memory Sink for tests and the demo CLI. It
// has no real audio device: callers drive playback progress explicitly via
// Advance, which moves CurrentTime forward and flips TrackStatus to
// complete when the loaded media's simulated duration elapses — this is
// exactly scenario 1's "advancing sink currentTime by 1s" test hook.
type FakeSink struct {
	mu           sync.Mutex
	durationFunc DurationFunc
	loaded       []byte
	duration     time.Duration
	rate         float64

	isPlaying   *events.Signal[bool]
	currentTime *events.Signal[time.Duration]
	trackStatus *events.Signal[TrackStatus]
}

// NewFakeSink creates a FakeSink. If durationFunc is nil, every loaded
// buffer is treated as 1 second long.
func NewFakeSink(durationFunc DurationFunc) *FakeSink {
	if durationFunc == nil {
		durationFunc = func([]byte) time.Duration { return time.Second }
	}
	return &FakeSink{
		durationFunc: durationFunc,
		rate:         1.0,
		isPlaying:    events.NewSignal(false),
		currentTime:  events.NewSignal[time.Duration](0),
		trackStatus:  events.NewSignal(StatusPaused),
	}
}

func (f *FakeSink) SwitchMedia(ctx context.Context, bytes []byte) error {
	f.mu.Lock()
	wasPlaying := f.isPlaying.Get()
	f.loaded = bytes
	f.duration = f.durationFunc(bytes)
	f.mu.Unlock()

	f.currentTime.Set(0)
	f.trackStatus.Set(StatusPaused)
	if wasPlaying {
		f.Play()
	}
	return nil
}

func (f *FakeSink) AppendMedia(ctx context.Context, bytes []byte) error {
	f.mu.Lock()
	f.loaded = append(f.loaded, bytes...)
	f.duration += f.durationFunc(bytes)
	f.mu.Unlock()
	return nil
}

func (f *FakeSink) Play() {
	f.isPlaying.Set(true)
	if f.trackStatus.Get() == StatusComplete {
		f.trackStatus.Set(StatusPaused)
	} else {
		f.trackStatus.Set(StatusPlaying)
	}
}

func (f *FakeSink) Pause() {
	f.isPlaying.Set(false)
	if f.trackStatus.Get() == StatusPlaying {
		f.trackStatus.Set(StatusPaused)
	}
}

func (f *FakeSink) SetRate(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

func (f *FakeSink) ClearMedia() {
	f.mu.Lock()
	f.loaded = nil
	f.duration = 0
	f.mu.Unlock()
	f.currentTime.Set(0)
	f.trackStatus.Set(StatusPaused)
	f.isPlaying.Set(false)
}

func (f *FakeSink) GetAudioBuffer(ctx context.Context, bytes []byte) (DecodedAudio, error) {
	return DecodedAudio{Duration: f.durationFunc(bytes)}, nil
}

func (f *FakeSink) IsPlaying() *events.Signal[bool]                    { return f.isPlaying }
func (f *FakeSink) CurrentTime() *events.Signal[time.Duration]         { return f.currentTime }
func (f *FakeSink) TrackStatus() *events.Signal[TrackStatus]           { return f.trackStatus }

// Advance moves wall-clock time forward by d, scaled by the configured
// playback rate, updating CurrentTime and flipping TrackStatus to complete
// exactly once when the loaded media's duration is reached (section 4.5's
// invariant). Scenario 3 (rate change) relies on this rate scaling: at 2x,
// advancing 2.5s of wall-clock time covers 5s of track duration.
func (f *FakeSink) Advance(d time.Duration) {
	f.mu.Lock()
	rate := f.rate
	duration := f.duration
	f.mu.Unlock()

	if !f.isPlaying.Get() {
		return
	}
	scaled := time.Duration(float64(d) * rate)
	next := f.currentTime.Get() + scaled
	if next >= duration && duration > 0 {
		f.currentTime.Set(duration)
		f.trackStatus.Set(StatusComplete)
		return
	}
	f.currentTime.Set(next)
}
