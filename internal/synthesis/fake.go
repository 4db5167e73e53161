package synthesis

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider is a deterministic in-memory Provider for tests and the demo
// CLI: it "synthesizes" by returning a byte slice encoding the text and
// voice so tests can assert on calls without real audio.
type FakeProvider struct {
	mu    sync.Mutex
	calls []FakeCall
	// FailNext, if set, is returned (and cleared) on the next call instead
	// of a successful synthesis.
	FailNext error
}

// FakeCall records one Synthesize invocation for assertions.
type FakeCall struct {
	Text string
	Opts Options
}

// NewFakeProvider creates an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

func (f *FakeProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Text: text, Opts: opts})
	fail := f.FailNext
	f.FailNext = nil
	f.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	return []byte(fmt.Sprintf("audio:%s:%s", opts.Voice, text)), nil
}

// Calls returns a snapshot of recorded calls.
func (f *FakeProvider) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Synthesize invocations so far.
func (f *FakeProvider) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
