// Package loader implements the chunk loader (C4): dedup, prefetch windows,
// cancellation, and retry/backoff against the synthesis provider. A single
// background goroutine drives a serial synthesis pipeline, grounded on the
// reference job queue's ticking processJobs loop and exponential-backoff
// calculation, combined with the reference media handler's use of
// singleflight for at-most-once-per-key concurrent work and the reference
// image provider's manual circuit-breaker cooldown.
package loader

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/audiocache"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/cancellable"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/conf"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/logging"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/synthesis"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/ttserrors"
)

// ReaderID identifies a C6 switcher instance to the loader for cancellation
// and priority partitioning (section 3).
type ReaderID string

const (
	maxAttempts       = 3
	initialBackoff    = 250 * time.Millisecond
	backoffMultiplier = 2.0
	cooldownCap       = 5 * time.Second
	defaultTick       = time.Second
)

// slot is the in-flight-or-resolved unit of work for one CacheKey
// (section 4.4's LoadSlot).
type slot struct {
	key         audiocache.Key
	cleanedText string
	opts        synthesis.Options
	future      *cancellable.Future[[]byte]

	readers map[ReaderID]int // readerID -> priorityIndex; lower is more urgent

	resolved      bool
	failedForGood bool
	attempts      int
	cooldownUntil time.Time
}

func (s *slot) bestPriority() (int, bool) {
	best := 0
	found := false
	for _, p := range s.readers {
		if !found || p < best {
			best = p
			found = true
		}
	}
	return best, found
}

// Loader orchestrates C4 exactly as described in section 4.4.
type Loader struct {
	cache    audiocache.Cache
	provider synthesis.Provider
	clk      clock
	logger   *slog.Logger

	mu    sync.Mutex
	slots map[audiocache.Key]*slot

	sf singleflight.Group

	tickInterval time.Duration
	wake         chan struct{}
	closeCh      chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// clock is the minimal time interface the loader needs; satisfied by
// internal/clock.Clock.
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// New constructs a Loader and starts its background worker. tickInterval
// defaults to defaultTick (~1s, per section 4.4) when zero.
func New(cache audiocache.Cache, provider synthesis.Provider, clk clock, tickInterval time.Duration) *Loader {
	if tickInterval <= 0 {
		tickInterval = defaultTick
	}
	l := &Loader{
		cache:        cache,
		provider:     provider,
		clk:          clk,
		logger:       logging.ForService("loader"),
		slots:        map[audiocache.Key]*slot{},
		tickInterval: tickInterval,
		wake:         make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loader) nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// getOrCreateSlot returns the slot for (opts, cleanedText), creating it
// (with a cache check) if absent.
func (l *Loader) getOrCreateSlot(cleanedText string, opts synthesis.Options) *slot {
	voiceHash := conf.ComputeVoiceHashFields(opts.ModelProvider, opts.Model, opts.Voice, opts.Instructions, opts.ApiURI, opts.ApiKey)
	key := audiocache.ComputeKey(voiceHash, cleanedText)

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		return s
	}
	s := &slot{
		key:         key,
		cleanedText: cleanedText,
		opts:        opts,
		future:      cancellable.NewFuture[[]byte](),
		readers:     map[ReaderID]int{},
	}
	if bytes, hit := l.cache.Get(key); hit {
		s.resolved = true
		s.future.Resolve(bytes)
	}
	l.slots[key] = s
	return s
}

// Preload registers interest in (text, voiceOptions) from readerID at
// priorityIndex, creating a slot if absent, without blocking for the
// result.
func (l *Loader) Preload(cleanedText string, opts synthesis.Options, readerID ReaderID, priorityIndex int) {
	s := l.getOrCreateSlot(cleanedText, opts)
	l.mu.Lock()
	s.readers[readerID] = priorityIndex
	l.mu.Unlock()
	l.nudge()
}

// Load registers readerID's interest at priorityIndex (the chunk's own
// position — the same value space as Preload and ExpireBefore, so the
// actively-needed chunk's registration is dropped by the same
// ExpireBefore(readerID, N) call that retires stale prefetch registrations)
// and returns a hot future resolving to audio bytes, guaranteeing
// at-most-one concurrent synthesis per CacheKey regardless of callers
// (section 4.4, testable property 5).
func (l *Loader) Load(cleanedText string, opts synthesis.Options, readerID ReaderID, priorityIndex int) *cancellable.Future[[]byte] {
	s := l.getOrCreateSlot(cleanedText, opts)
	l.mu.Lock()
	s.readers[readerID] = priorityIndex
	l.mu.Unlock()
	l.nudge()
	return s.future
}

// Retry clears a permanently-failed slot for (cleanedText, opts) so it is
// attempted again, then registers readerID's interest exactly like Load and
// returns the fresh future. Without this, a slot whose failedForGood is set
// stays invisible to selectBestCandidate forever and its one-shot future
// can never resettle, so calling Load again for the same key would just
// hand back the already-rejected future (section 7's retry-after-cooldown
// depends on this resetting the loader's view, not just the caller's).
func (l *Loader) Retry(cleanedText string, opts synthesis.Options, readerID ReaderID, priorityIndex int) *cancellable.Future[[]byte] {
	voiceHash := conf.ComputeVoiceHashFields(opts.ModelProvider, opts.Model, opts.Voice, opts.Instructions, opts.ApiURI, opts.ApiKey)
	key := audiocache.ComputeKey(voiceHash, cleanedText)

	l.mu.Lock()
	if s, ok := l.slots[key]; ok && s.failedForGood {
		delete(l.slots, key)
	}
	l.mu.Unlock()

	return l.Load(cleanedText, opts, readerID, priorityIndex)
}

// ExpireBefore drops registrations from readerID whose priority is below
// priorityIndex (used when playback advances past them).
func (l *Loader) ExpireBefore(readerID ReaderID, priorityIndex int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.slots {
		if p, ok := s.readers[readerID]; ok && p < priorityIndex {
			delete(s.readers, readerID)
		}
	}
}

// Expire drops all registrations for readerID.
func (l *Loader) Expire(readerID ReaderID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.slots {
		delete(s.readers, readerID)
	}
}

// Destroy cancels the background worker. In-flight synthesis is allowed to
// run to completion (section 9, open question c) — Destroy only stops the
// loop from starting new work; it does not cancel an outstanding HTTP call.
func (l *Loader) Destroy() {
	l.closeOnce.Do(func() {
		close(l.closeCh)
	})
	l.wg.Wait()
}

func (l *Loader) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.closeCh:
			return
		case <-ticker.C:
			l.drainCandidates()
		case <-l.wake:
			l.drainCandidates()
		}
	}
}

// drainCandidates processes the best candidate slots back-to-back, serially
// (never more than one synthesis call outstanding at a time), until none
// remain ready, matching "within one tick the pending chunks are submitted"
// from the full-playthrough scenario.
func (l *Loader) drainCandidates() {
	for {
		select {
		case <-l.closeCh:
			return
		default:
		}
		s := l.selectBestCandidate()
		if s == nil {
			return
		}
		l.synthesizeSlot(s)
	}
}

// selectBestCandidate picks the slot with the lowest registered priority
// across all readers, among slots that are not yet resolved, still have at
// least one interested reader, and are not in cooldown.
func (l *Loader) selectBestCandidate() *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	var best *slot
	bestPriority := math.MaxInt

	for _, s := range l.slots {
		if s.resolved || s.failedForGood {
			continue
		}
		if len(s.readers) == 0 {
			continue
		}
		if now.Before(s.cooldownUntil) {
			continue
		}
		p, ok := s.bestPriority()
		if !ok {
			continue
		}
		if p < bestPriority {
			bestPriority = p
			best = s
		}
	}
	return best
}

func (l *Loader) synthesizeSlot(s *slot) {
	if bytes, hit := l.cache.Get(s.key); hit {
		l.mu.Lock()
		s.resolved = true
		l.mu.Unlock()
		s.future.Resolve(bytes)
		return
	}

	result, err, _ := l.sf.Do(string(s.key), func() (any, error) {
		return l.provider.Synthesize(context.Background(), s.cleanedText, s.opts)
	})

	if err != nil {
		l.handleFailure(s, err)
		return
	}

	audio := result.([]byte)
	l.cache.Put(s.key, audio)
	l.mu.Lock()
	s.resolved = true
	s.attempts = 0
	s.cooldownUntil = time.Time{}
	l.mu.Unlock()
	s.future.Resolve(audio)
}

func (l *Loader) handleFailure(s *slot, err error) {
	retryable := ttserrors.IsRetryable(err) || synthesis.IsRetryableMessage(err.Error())

	l.mu.Lock()
	s.attempts++
	attempts := s.attempts
	if retryable && attempts < maxAttempts {
		delay := backoffDelay(attempts)
		s.cooldownUntil = l.clk.Now().Add(delay)
		l.mu.Unlock()
		l.logger.Debug("synthesis failed, will retry", "cacheKey", s.key, "attempt", attempts, "delay", delay, "err", err)
		return
	}
	s.failedForGood = true
	s.cooldownUntil = l.clk.Now().Add(cooldownCap)
	l.mu.Unlock()

	l.logger.Warn("synthesis failed permanently", "cacheKey", s.key, "attempts", attempts, "err", err)
	wrapped := ttserrors.New(err).Component("loader").
		Category(categoryFor(err)).
		Context("cacheKey", string(s.key)).
		Context("attempts", attempts).
		Build()
	s.future.Reject(wrapped)
}

func categoryFor(err error) ttserrors.Category {
	if e, ok := ttserrors.AsError(err); ok {
		return e.Category()
	}
	return ttserrors.CategoryPermanentSynthesis
}

// backoffDelay computes the exponential backoff for the given attempt
// number (1-indexed), starting at initialBackoff and capped at cooldownCap,
// with +/-20% jitter — grounded directly on the reference job queue's
// calculateBackoffDelay.
func backoffDelay(attempt int) time.Duration {
	delay := float64(initialBackoff) * math.Pow(backoffMultiplier, float64(attempt-1))
	if delay > float64(cooldownCap) {
		delay = float64(cooldownCap)
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2) //nolint:gosec // scheduling jitter, not security-sensitive
	d := time.Duration(delay * jitter)
	if d > cooldownCap {
		d = cooldownCap
	}
	return d
}
