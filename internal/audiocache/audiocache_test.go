package audiocache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/audiocache"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/conf"
)

func TestComputeKeyIsDeterministicAndVoiceSensitive(t *testing.T) {
	k1 := audiocache.ComputeKey("voiceA", "hello world")
	k2 := audiocache.ComputeKey("voiceA", "hello world")
	k3 := audiocache.ComputeKey("voiceB", "hello world")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMemoryCacheGetPutRoundTrip(t *testing.T) {
	c := audiocache.NewMemoryCache()
	key := audiocache.ComputeKey(conf.VoiceHash("v"), "text")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, []byte("audio-bytes"))
	bytes, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("audio-bytes"), bytes)
	assert.Equal(t, int64(len("audio-bytes")), c.SizeBytes())
}

func TestMemoryCacheExpireEvictsOlderThanMaxAge(t *testing.T) {
	c := audiocache.NewMemoryCache()
	key := audiocache.ComputeKey(conf.VoiceHash("v"), "text")
	c.Put(key, []byte("bytes"))

	c.Expire(time.Hour) // nothing is an hour old yet
	_, ok := c.Get(key)
	assert.True(t, ok)

	c.Expire(0) // maxAge 0 evicts everything immediately
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.SizeBytes())
}

func TestGoCacheBackedRoundTrip(t *testing.T) {
	c := audiocache.NewGoCacheBacked(time.Minute, time.Minute)
	key := audiocache.ComputeKey(conf.VoiceHash("v"), "text")
	c.Put(key, []byte("bytes"))
	bytes, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("bytes"), bytes)
	assert.Equal(t, int64(len("bytes")), c.SizeBytes())

	c.Expire(0)
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestFromSettingsSelectsBackend(t *testing.T) {
	s := &conf.Settings{}
	s.Cache.DurationMillis = 60000

	s.Cache.Backend = ""
	_, ok := audiocache.FromSettings(s).(*audiocache.MemoryCache)
	assert.True(t, ok, "empty backend must default to MemoryCache")

	s.Cache.Backend = "memory"
	_, ok = audiocache.FromSettings(s).(*audiocache.MemoryCache)
	assert.True(t, ok)

	s.Cache.Backend = "gocache"
	_, ok = audiocache.FromSettings(s).(*audiocache.GoCacheBacked)
	assert.True(t, ok, "\"gocache\" must select GoCacheBacked")
}
