// Package sink defines the audio sink adapter contract (C5): a thin
// polymorphic wrapper over an output device. The real output device is an
// external collaborator (section 1); this package defines the interface
// plus a fake implementation suitable for tests and the demo CLI.
package sink

import (
	"context"
	"time"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/events"
)

// TrackStatus is the sink's lifecycle of a loaded audio buffer
// (section 4.5).
type TrackStatus string

const (
	StatusPlaying  TrackStatus = "playing"
	StatusPaused   TrackStatus = "paused"
	StatusComplete TrackStatus = "complete"
)

// DecodedAudio is the opaque result of decoding audio bytes for
// visualization (section 4.5, getAudioBuffer). The real decode is provided
// by the audio output device; here it just carries a duration.
type DecodedAudio struct {
	Duration time.Duration
}

// Sink is the C5 contract.
type Sink interface {
	// SwitchMedia loads a new buffer and, if the sink was previously
	// playing, resumes.
	SwitchMedia(ctx context.Context, bytes []byte) error
	// AppendMedia optionally supports streaming concatenation onto the
	// currently loaded buffer.
	AppendMedia(ctx context.Context, bytes []byte) error
	Play()
	Pause()
	SetRate(rate float64)
	ClearMedia()
	// GetAudioBuffer decodes bytes for visualization purposes.
	GetAudioBuffer(ctx context.Context, bytes []byte) (DecodedAudio, error)

	IsPlaying() *events.Signal[bool]
	CurrentTime() *events.Signal[time.Duration]
	TrackStatus() *events.Signal[TrackStatus]
}
