package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/ttserrors"
)

// HTTPClientConfig tunes the underlying transport, modeled directly on the
// reference httpclient.Config: connection pooling and timeouts sized for a
// server making many small outbound calls.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	UserAgent           string
	// RequestsPerSecond bounds outbound politeness independent of the
	// loader's own one-at-a-time scheduling, so a provider sharing this
	// client across readers/sessions is never hit faster than this rate.
	RequestsPerSecond rate.Limit
	RateBurst         int
}

// DefaultHTTPClientConfig mirrors the reference client's defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		UserAgent:           "ttsplay/1.0",
		RequestsPerSecond:   5,
		RateBurst:           2,
	}
}

// HTTPProvider is the HTTP-backed Provider implementation, modeled on the
// reference internal/httpclient.Client: a tuned *http.Client plus a politeness
// rate limiter and a manual circuit breaker so repeated provider failures
// stop generating outbound traffic for a cooldown window, the same pattern
// the reference image provider uses for a flaky upstream.
type HTTPProvider struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string

	circuitMu        sync.RWMutex
	circuitOpenUntil time.Time
	circuitFailures  int
}

// NewHTTPProvider constructs an HTTPProvider from cfg.
func NewHTTPProvider(cfg HTTPClientConfig) *HTTPProvider {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &HTTPProvider{
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(cfg.RequestsPerSecond, cfg.RateBurst),
		userAgent: cfg.UserAgent,
	}
}

const circuitCooldown = 5 * time.Second
const circuitFailureThreshold = 3

func (p *HTTPProvider) isCircuitOpen() bool {
	p.circuitMu.RLock()
	defer p.circuitMu.RUnlock()
	return time.Now().Before(p.circuitOpenUntil)
}

func (p *HTTPProvider) recordFailure() {
	p.circuitMu.Lock()
	defer p.circuitMu.Unlock()
	p.circuitFailures++
	if p.circuitFailures >= circuitFailureThreshold {
		p.circuitOpenUntil = time.Now().Add(circuitCooldown)
	}
}

func (p *HTTPProvider) resetCircuit() {
	p.circuitMu.Lock()
	defer p.circuitMu.Unlock()
	p.circuitFailures = 0
	p.circuitOpenUntil = time.Time{}
}

// requestBody is the JSON payload sent to an OpenAI-compatible speech
// synthesis endpoint.
type requestBody struct {
	Model        string `json:"model"`
	Input        string `json:"input"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions,omitempty"`
}

// Synthesize issues the HTTP synthesis request. It classifies any non-2xx
// response or transport error into a *ttserrors.Error carrying the HTTP
// status and provider body (section 6), and respects the circuit breaker's
// cooldown by failing fast as TransientSynthesis without making a network
// call while the circuit is open.
func (p *HTTPProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	if p.isCircuitOpen() {
		return nil, ttserrors.New(fmt.Errorf("synthesis provider circuit open")).
			Component("synthesis").
			Category(ttserrors.CategoryTransientSynthesis).
			Build()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, ttserrors.New(err).
			Component("synthesis").
			Category(ttserrors.CategoryTransientSynthesis).
			Build()
	}

	payload, err := json.Marshal(requestBody{
		Model:        opts.Model,
		Input:        text,
		Voice:        opts.Voice,
		Instructions: opts.Instructions,
	})
	if err != nil {
		return nil, ttserrors.New(err).Component("synthesis").
			Category(ttserrors.CategoryPermanentSynthesis).Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.ApiURI, bytes.NewReader(payload))
	if err != nil {
		return nil, ttserrors.New(err).Component("synthesis").
			Category(ttserrors.CategoryPermanentSynthesis).Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+opts.ApiKey)
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordFailure()
		return nil, ttserrors.New(err).
			Component("synthesis").
			Category(ttserrors.CategoryTransientSynthesis).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cat := classifyHTTPStatus(resp.StatusCode)
		if cat == ttserrors.CategoryTransientSynthesis {
			p.recordFailure()
		}
		return nil, ttserrors.New(fmt.Errorf("synthesis provider returned %d", resp.StatusCode)).
			Component("synthesis").
			Category(cat).
			HTTPContext(resp.StatusCode, string(body)).
			Build()
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure()
		return nil, ttserrors.New(err).
			Component("synthesis").
			Category(ttserrors.CategoryTransientSynthesis).
			Build()
	}

	p.resetCircuit()
	return audio, nil
}

// classifyHTTPStatus implements the isRetryable contract from section 6:
// true for unknown code, 429, and >=500; everything else (4xx other than
// 429) is permanent.
func classifyHTTPStatus(status int) ttserrors.Category {
	switch {
	case status == http.StatusTooManyRequests:
		return ttserrors.CategoryTransientSynthesis
	case status >= 500:
		return ttserrors.CategoryTransientSynthesis
	case status >= 400:
		return ttserrors.CategoryPermanentSynthesis
	default:
		return ttserrors.CategoryTransientSynthesis
	}
}

// IsRetryableMessage applies the reference processor's substring-based
// retry heuristic to transport-level errors that never reached the HTTP
// status-code classification above (e.g. DNS failures, connection resets) —
// grounded on the reference TTS processor's isRetryableTTS function.
func IsRetryableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"timeout", "deadline exceeded", "connection reset", "eof", "502", "503", "429", "rate", "quota exceeded temporarily"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
