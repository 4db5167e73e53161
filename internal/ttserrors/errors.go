// Package ttserrors provides the structured error type used across the
// playback core: every failure carries a Category that downstream
// components (loader retry logic, session error surface, bridge) switch on,
// plus a Context map for structured diagnostic fields.
package ttserrors

import (
	"errors"
	"fmt"
)

// Category classifies a failure the way the loader and session need to
// react to it.
type Category string

const (
	// CategoryTransientSynthesis is a retryable synthesis failure: timeout,
	// 429, or any 5xx from the provider.
	CategoryTransientSynthesis Category = "transient_synthesis"
	// CategoryPermanentSynthesis is a non-retryable synthesis failure: auth,
	// quota, malformed request.
	CategoryPermanentSynthesis Category = "permanent_synthesis"
	// CategoryDecodeFailure means audio bytes did not decode to a waveform.
	CategoryDecodeFailure Category = "decode_failure"
	// CategoryCacheFailure means a cache read or write failed.
	CategoryCacheFailure Category = "cache_failure"
	// CategoryEditorDetached means the editor a session was bound to is gone.
	CategoryEditorDetached Category = "editor_detached"
)

// Error is the structured error type returned by every component in this
// module. It wraps an underlying cause and carries enough context for
// logging and for the loader's retry classification.
type Error struct {
	err      error
	op       string
	category Category
	context  map[string]any
}

// Builder constructs an Error fluently, mirroring the call chain
// New(err).Component(...).Category(...).Context(...).Build().
type Builder struct {
	e *Error
}

// New starts a Builder wrapping err.
func New(err error) *Builder {
	return &Builder{e: &Error{err: err, context: map[string]any{}}}
}

// Newf starts a Builder wrapping a new error formatted from format/args.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component records which subsystem raised the error (e.g. "loader",
// "synthesis", "sink").
func (b *Builder) Component(name string) *Builder {
	b.e.op = name
	return b
}

// Category records the failure category.
func (b *Builder) Category(c Category) *Builder {
	b.e.category = c
	return b
}

// Context attaches a structured diagnostic field.
func (b *Builder) Context(key string, value any) *Builder {
	b.e.context[key] = value
	return b
}

// HTTPContext is a convenience for the common synthesis-adapter case of
// attaching status code and provider body.
func (b *Builder) HTTPContext(statusCode int, body string) *Builder {
	b.e.context["httpCode"] = statusCode
	b.e.context["providerBody"] = body
	return b
}

// Build finalizes the Error.
func (b *Builder) Build() *Error {
	return b.e
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: [%s] %v", e.op, e.category, e.err)
	}
	return fmt.Sprintf("[%s] %v", e.category, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Category reports the failure category.
func (e *Error) Category() Category {
	return e.category
}

// Component reports which subsystem raised the error.
func (e *Error) Component() string {
	return e.op
}

// Context returns the structured diagnostic fields attached to the error.
func (e *Error) Context() map[string]any {
	return e.context
}

// Retryable reports whether the loader should attempt a backoff-retry for
// this error. Only TransientSynthesis is retryable; every other category is
// terminal for the current attempt.
func (e *Error) Retryable() bool {
	return e.category == CategoryTransientSynthesis
}

// Is supports errors.Is against category sentinels by comparing category
// when the target is also an *Error with no wrapped cause of its own.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) && other.err == nil {
		return e.category == other.category
	}
	return false
}

// CategorySentinel returns a bare *Error usable as an errors.Is target for
// a category, e.g. errors.Is(err, CategorySentinel(CategoryTransientSynthesis)).
func CategorySentinel(c Category) *Error {
	return &Error{category: c}
}

// AsError extracts an *Error from err via errors.As.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsCategory reports whether err is (or wraps) an *Error of category c.
func IsCategory(err error, c Category) bool {
	e, ok := AsError(err)
	return ok && e.category == c
}

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable()
}
