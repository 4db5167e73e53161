// Package conf holds the process-wide Settings struct, loaded via viper
// with embedded defaults, and the VoiceHash fingerprint that the loader and
// session use to decide when cached audio must be abandoned.
package conf

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var defaultConfig embed.FS

// ChunkType selects the chunking strategy used at session creation.
type ChunkType string

const (
	ChunkSentence  ChunkType = "sentence"
	ChunkParagraph ChunkType = "paragraph"
)

// Settings is the process-wide configuration, mirroring the option set
// named in the external interfaces: synthesis provider selection, playback
// defaults, cache tuning, and editor behavior.
type Settings struct {
	Synthesis struct {
		ModelProvider string // e.g. "openai", "elevenlabs"
		Model         string
		Voice         string
		Instructions  string
		ApiURI        string
		ApiKey        string
	}

	Playback struct {
		Speed          float64
		ChunkType      ChunkType
		MinChunkLength int
	}

	Cache struct {
		DurationMillis                 int64
		BackgroundLoaderIntervalMillis int64
		// Backend selects the audiocache.Cache implementation ("memory" or
		// "gocache"); see audiocache.FromSettings.
		Backend string
	}

	Editor struct {
		AutoScrollPlayerView bool
	}
}

// VoiceHash is the deterministic fingerprint of every option that affects
// synthesized audio output. Any field here changing must change the hash
// (section 3 of the spec); fields that only affect playback mechanics
// (Speed) or editor UX (AutoScrollPlayerView) are deliberately excluded.
type VoiceHash string

// ComputeVoiceHash fingerprints the synthesis-affecting subset of Settings.
// Field order is fixed so the hash is stable across process runs.
func ComputeVoiceHash(s *Settings) VoiceHash {
	return ComputeVoiceHashFields(
		s.Synthesis.ModelProvider,
		s.Synthesis.Model,
		s.Synthesis.Voice,
		s.Synthesis.Instructions,
		s.Synthesis.ApiURI,
		s.Synthesis.ApiKey,
	)
}

// ComputeVoiceHashFields fingerprints the raw synthesis-option fields
// directly, so callers holding a synthesis.Options value (rather than a
// full Settings) can derive the same VoiceHash without constructing one.
func ComputeVoiceHashFields(modelProvider, model, voice, instructions, apiURI, apiKey string) VoiceHash {
	canonical := strings.Join([]string{
		modelProvider,
		model,
		voice,
		instructions,
		apiURI,
		apiKeyIdentity(apiKey),
	}, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return VoiceHash(hex.EncodeToString(sum[:]))
}

// apiKeyIdentity hashes the API key rather than including it verbatim so
// that logs and cache keys derived from VoiceHash never leak the secret.
func apiKeyIdentity(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

var (
	instance *Settings
	once     sync.Once
	loadErr  error
)

// Load reads embedded defaults plus any on-disk overlay at configPath (may
// be empty) and environment variables prefixed TTSPLAY_, returning the
// process-wide Settings singleton.
func Load(configPath string) (*Settings, error) {
	once.Do(func() {
		instance, loadErr = load(configPath)
	})
	return instance, loadErr
}

// Setting returns the already-loaded Settings singleton, or defaults if
// Load was never called (useful in tests).
func Setting() *Settings {
	if instance != nil {
		return instance
	}
	s, err := load("")
	if err != nil {
		return &Settings{}
	}
	return s
}

func load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaultBytes, err := defaultConfig.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("conf: reading embedded defaults: %w", err)
	}
	if err := v.ReadConfig(strings.NewReader(string(defaultBytes))); err != nil {
		return nil, fmt.Errorf("conf: parsing embedded defaults: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("conf: merging %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("TTSPLAY")
	v.AutomaticEnv()

	s := &Settings{}
	s.Synthesis.ModelProvider = v.GetString("synthesis.modelprovider")
	s.Synthesis.Model = v.GetString("synthesis.model")
	s.Synthesis.Voice = v.GetString("synthesis.voice")
	s.Synthesis.Instructions = v.GetString("synthesis.instructions")
	s.Synthesis.ApiURI = v.GetString("synthesis.apiuri")
	s.Synthesis.ApiKey = v.GetString("synthesis.apikey")

	s.Playback.Speed = v.GetFloat64("playback.speed")
	s.Playback.ChunkType = ChunkType(v.GetString("playback.chunktype"))
	s.Playback.MinChunkLength = v.GetInt("playback.minchunklength")

	s.Cache.DurationMillis = v.GetInt64("cache.durationmillis")
	s.Cache.BackgroundLoaderIntervalMillis = v.GetInt64("cache.backgroundloaderintervalmillis")
	s.Cache.Backend = v.GetString("cache.backend")

	s.Editor.AutoScrollPlayerView = v.GetBool("editor.autoscrollplayerview")

	return s, nil
}

// CacheDuration returns Cache.DurationMillis as a time.Duration.
func (s *Settings) CacheDuration() time.Duration {
	return time.Duration(s.Cache.DurationMillis) * time.Millisecond
}

// BackgroundLoaderInterval returns the loader's background poll tick
// (how often the worker re-scans candidate slots), clamped to [1s, 1min].
func (s *Settings) BackgroundLoaderInterval() time.Duration {
	d := time.Duration(s.Cache.BackgroundLoaderIntervalMillis) * time.Millisecond
	return clampInterval(d)
}

// sweepIntervalDivisor scales the TTL-derived sweep cadence: the sweep runs
// more often than the TTL itself so an entry is never stale for much longer
// than its configured max age.
const sweepIntervalDivisor = 10

// CacheSweepInterval returns the cache-expiry sweep cadence, scaled from
// CacheDuration (the TTL) and clamped to [1s, 1min] per section 4.8 — a
// concern distinct from BackgroundLoaderInterval, which governs the
// loader's own poll tick rather than the cache's expiry sweep.
func (s *Settings) CacheSweepInterval() time.Duration {
	return clampInterval(s.CacheDuration() / sweepIntervalDivisor)
}

func clampInterval(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	if d > time.Minute {
		return time.Minute
	}
	return d
}
