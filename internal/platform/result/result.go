// Package result defines the two-variant outcome every data-access call
// returns. A Result is either a success carrying a payload (and optionally a
// URL) or a failure carrying an error; nothing in the data-access layer
// returns a bare error or panics past its boundary.
package result

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/validation"
)

// ErrNotFound marks a fetch-by-id that matched no row.
var ErrNotFound = errors.New("record not found")

// Result is the outcome of a data-access operation.
type Result[T any] struct {
	ok   bool
	data T
	url  string
	err  error
}

// Ok wraps a successful payload.
func Ok[T any](data T) Result[T] {
	return Result[T]{ok: true, data: data}
}

// OkURL wraps a successful upload, carrying the URL the object is served at
// alongside the updated payload.
func OkURL[T any](data T, url string) Result[T] {
	return Result[T]{ok: true, data: data, url: url}
}

// Fail wraps an error. A nil err is replaced so a failure always describes
// itself.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result[T]{err: err}
}

// Failf is Fail with fmt.Errorf formatting.
func Failf[T any](format string, args ...interface{}) Result[T] {
	return Fail[T](fmt.Errorf(format, args...))
}

func (r Result[T]) Success() bool { return r.ok }

// Data returns the payload; the zero value on failure.
func (r Result[T]) Data() T { return r.data }

// URL returns the public URL for upload results, "" otherwise.
func (r Result[T]) URL() string { return r.url }

// Err returns the failure cause, nil on success.
func (r Result[T]) Err() error { return r.err }

// NotFound reports whether the failure is a fetch that matched nothing.
func (r Result[T]) NotFound() bool {
	return !r.ok && errors.Is(r.err, ErrNotFound)
}

// Unwrap converts back to Go's (value, error) convention.
func (r Result[T]) Unwrap() (T, error) {
	return r.data, r.err
}

// Envelope is the wire form of a Result.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	URL     string      `json:"url,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Fields  interface{} `json:"fields,omitempty"`
}

// Envelope renders the result for transport.
func (r Result[T]) Envelope() Envelope {
	if !r.ok {
		env := Envelope{Error: r.err.Error()}
		if r.NotFound() {
			env.Code = "not_found"
		}
		return env
	}
	return Envelope{Success: true, Data: r.data, URL: r.url}
}

// Capture runs fn and converts its outcome into a Result. Errors and panics
// are logged against op and returned as failures.
func Capture[T any](logger zerolog.Logger, op string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			logger.Error().
				Str("op", op).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(stack[:n])).
				Msg("panic recovered in data access")
			res = Fail[T](fmt.Errorf("%s: unexpected error", op))
		}
	}()

	data, err := fn()
	if err != nil {
		evt := logger.Error()
		var fields validation.Errors
		if errors.Is(err, ErrNotFound) || errors.As(err, &fields) {
			evt = logger.Warn()
		}
		evt.Err(err).Str("op", op).Msg("data access failed")
		return Fail[T](err)
	}
	return Ok(data)
}

// Map transforms a successful payload, passing failures through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return Result[U]{err: r.err}
	}
	return Result[U]{ok: true, data: fn(r.data), url: r.url}
}
