// Package synthesis defines the external synthesis provider adapter
// (section 6): text + options -> audio bytes, plus the HTTP-backed
// implementation and its retry classification.
package synthesis

import "context"

// Options carries every synthesis-affecting and provider-routing option
// named in section 6's external interfaces.
type Options struct {
	ModelProvider string
	Model         string
	Voice         string
	Instructions  string
	ApiURI        string
	ApiKey        string
	// Extra carries provider-specific options not modeled explicitly
	// (e.g. a speed or format hint some providers accept at the API level
	// distinct from the sink's own setRate).
	Extra map[string]string
}

// Provider is the synthesis provider adapter contract (section 6):
// (text, options) -> bytes, fulfilled asynchronously.
type Provider interface {
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)
}
