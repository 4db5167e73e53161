package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/logging"
)

func TestForServiceReturnsUsableLoggerBeforeInit(t *testing.T) {
	logger := logging.ForService("test-service")
	assert.NotNil(t, logger)
}

func TestDefaultOptionsAreSane(t *testing.T) {
	opts := logging.DefaultOptions()
	assert.NotEmpty(t, opts.LogFilePath)
	assert.Greater(t, opts.MaxSizeMB, 0)
}
