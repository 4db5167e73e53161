package sink_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/sink"
)

func TestFakeSinkAdvanceCompletesAtDuration(t *testing.T) {
	s := sink.NewFakeSink(func(bytes []byte) time.Duration { return time.Second })
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("clip")))
	s.Play()

	s.Advance(500 * time.Millisecond)
	assert.Equal(t, sink.StatusPlaying, s.TrackStatus().Get())

	s.Advance(600 * time.Millisecond)
	assert.Equal(t, sink.StatusComplete, s.TrackStatus().Get())
}

func TestFakeSinkAdvanceScalesWithRate(t *testing.T) {
	s := sink.NewFakeSink(func(bytes []byte) time.Duration { return 5 * time.Second })
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("clip")))
	s.SetRate(2.0)
	s.Play()

	s.Advance(2500 * time.Millisecond) // 2.5s wall-clock * 2x rate == 5s track time
	assert.Equal(t, sink.StatusComplete, s.TrackStatus().Get())
}

func TestFakeSinkAdvanceWhilePausedDoesNothing(t *testing.T) {
	s := sink.NewFakeSink(nil)
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("clip")))
	s.Advance(2 * time.Second)
	assert.Equal(t, time.Duration(0), s.CurrentTime().Get())
}

func TestFakeSinkSwitchMediaResetsAndResumesIfPlaying(t *testing.T) {
	s := sink.NewFakeSink(nil)
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("first")))
	s.Play()
	s.Advance(500 * time.Millisecond)

	require.NoError(t, s.SwitchMedia(context.Background(), []byte("second")))
	assert.Equal(t, time.Duration(0), s.CurrentTime().Get())
	assert.True(t, s.IsPlaying().Get())
}

func TestFakeSinkPauseStopsAdvancing(t *testing.T) {
	s := sink.NewFakeSink(nil)
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("clip")))
	s.Play()
	s.Pause()
	s.Advance(time.Second)
	assert.Equal(t, time.Duration(0), s.CurrentTime().Get())
}

func TestFakeSinkClearMediaResetsState(t *testing.T) {
	s := sink.NewFakeSink(nil)
	require.NoError(t, s.SwitchMedia(context.Background(), []byte("clip")))
	s.Play()
	s.ClearMedia()
	assert.False(t, s.IsPlaying().Get())
	assert.Equal(t, sink.StatusPaused, s.TrackStatus().Get())
	assert.Equal(t, time.Duration(0), s.CurrentTime().Get())
}
