// Package store implements the playback store (C8): the process-wide owner
// of the audio cache, loader, and the single active session, plus the
// background sweep that expires stale cache entries.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/audiocache"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/chunk"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/clock"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/conf"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/logging"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/loader"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/session"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/sink"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/synthesis"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/textsplit"
)

// StartOptions describes the text to start playing and how to chunk it.
type StartOptions struct {
	Filename       string
	FriendlyName   string
	Text           string
	StartOffset    int
	ChunkMode      textsplit.Mode
	MinChunkLength int
}

// Store is the C8 process-wide owner of the cache, loader, and the single
// active session.
type Store struct {
	settings *conf.Settings
	cache    audiocache.Cache
	provider synthesis.Provider
	snk      sink.Sink
	clean    chunk.CleanFunc
	clk      clock.Clock
	logger   *slog.Logger

	ldr *loader.Loader

	mu      sync.Mutex
	current *session.Session

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New constructs a Store and starts the loader and background cache sweep.
// sink and provider are required collaborators (section 6); cache defaults
// to an in-memory MemoryCache when nil.
func New(settings *conf.Settings, cache audiocache.Cache, provider synthesis.Provider, snk sink.Sink, clean chunk.CleanFunc, clk clock.Clock) *Store {
	if cache == nil {
		cache = audiocache.NewMemoryCache()
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Store{
		settings:  settings,
		cache:     cache,
		provider:  provider,
		snk:       snk,
		clean:     clean,
		clk:       clk,
		logger:    logging.ForService("store"),
		ldr:       loader.New(cache, provider, clk, settings.BackgroundLoaderInterval()),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Store) sweepLoop() {
	defer close(s.sweepDone)
	interval := s.settings.CacheSweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.cache.Expire(s.settings.CacheDuration())
		}
	}
}

// StartPlayer destroys any existing session, chunks the given text, and
// begins playback of the new session (section 4.8's startPlayer).
func (s *Store) StartPlayer(opts StartOptions) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Destroy()
		s.current = nil
	}

	mode := opts.ChunkMode
	if mode == "" {
		mode = textsplit.Mode(s.settings.Playback.ChunkType)
	}
	minLen := opts.MinChunkLength
	if minLen == 0 {
		minLen = s.settings.Playback.MinChunkLength
	}

	chunks := textsplit.Split(opts.Text, opts.StartOffset, mode, minLen, s.clean)
	audioText := chunk.AudioText{
		ID:           uuid.New().String(),
		Filename:     opts.Filename,
		FriendlyName: opts.FriendlyName,
		CreatedAt:    time.Now(),
		Chunks:       chunks,
	}

	sess := session.New(session.Config{
		AudioText:    audioText,
		Loader:       s.ldr,
		Sink:         s.snk,
		Clean:        s.clean,
		VoiceOptions: synthesisOptionsFromSettings(s.settings),
	})
	s.current = sess
	sess.Play()
	return sess
}

// ClosePlayer tears down the active session, if any.
func (s *Store) ClosePlayer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Destroy()
		s.current = nil
	}
}

// Current returns the active session, or nil if none.
func (s *Store) Current() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reconfigure propagates updated settings to the active session (if any),
// triggering a switcher rebuild when the voice-affecting fields changed.
func (s *Store) Reconfigure(newSettings *conf.Settings) {
	s.mu.Lock()
	s.settings = newSettings
	cur := s.current
	s.mu.Unlock()

	if cur != nil {
		cur.Reconfigure(synthesisOptionsFromSettings(newSettings), newSettings.Playback.Speed)
	}
}

// Destroy tears down the active session, stops the background sweep, and
// stops the loader's worker.
func (s *Store) Destroy() {
	s.ClosePlayer()
	close(s.sweepStop)
	<-s.sweepDone
	s.ldr.Destroy()
}

func synthesisOptionsFromSettings(settings *conf.Settings) synthesis.Options {
	return synthesis.Options{
		ModelProvider: settings.Synthesis.ModelProvider,
		Model:         settings.Synthesis.Model,
		Voice:         settings.Synthesis.Voice,
		Instructions:  settings.Synthesis.Instructions,
		ApiURI:        settings.Synthesis.ApiURI,
		ApiKey:        settings.Synthesis.ApiKey,
	}
}
