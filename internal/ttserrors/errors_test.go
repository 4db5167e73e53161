package ttserrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/ttserrors"
)

func TestBuilderBuildsStructuredError(t *testing.T) {
	cause := errors.New("boom")
	err := ttserrors.New(cause).
		Component("synthesis").
		Category(ttserrors.CategoryTransientSynthesis).
		Context("attempt", 2).
		Build()

	require.Error(t, err)
	assert.Equal(t, ttserrors.CategoryTransientSynthesis, err.Category())
	assert.Equal(t, "synthesis", err.Component())
	assert.Equal(t, 2, err.Context()["attempt"])
	assert.True(t, err.Retryable())
	assert.ErrorIs(t, err, cause)
}

func TestOnlyTransientIsRetryable(t *testing.T) {
	permanent := ttserrors.New(errors.New("bad request")).
		Category(ttserrors.CategoryPermanentSynthesis).Build()
	assert.False(t, permanent.Retryable())
	assert.False(t, ttserrors.IsRetryable(permanent))
}

func TestIsCategoryMatchesErrorButNotStringCopy(t *testing.T) {
	err := ttserrors.New(errors.New("rate limited")).
		Category(ttserrors.CategoryTransientSynthesis).Build()
	wrapped := errors.New("outer: " + err.Error())
	assert.False(t, ttserrors.IsCategory(wrapped, ttserrors.CategoryTransientSynthesis))
	assert.True(t, ttserrors.IsCategory(err, ttserrors.CategoryTransientSynthesis))
}

func TestCategorySentinelMatchesViaErrorsIs(t *testing.T) {
	err := ttserrors.New(errors.New("x")).Category(ttserrors.CategoryDecodeFailure).Build()
	assert.True(t, errors.Is(err, ttserrors.CategorySentinel(ttserrors.CategoryDecodeFailure)))
	assert.False(t, errors.Is(err, ttserrors.CategorySentinel(ttserrors.CategoryCacheFailure)))
}

func TestHTTPContextAttachesStatusAndBody(t *testing.T) {
	err := ttserrors.New(errors.New("server error")).
		Category(ttserrors.CategoryTransientSynthesis).
		HTTPContext(503, "upstream overloaded").
		Build()
	assert.Equal(t, 503, err.Context()["httpCode"])
	assert.Equal(t, "upstream overloaded", err.Context()["providerBody"])
}
