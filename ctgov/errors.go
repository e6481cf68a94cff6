package ctgov

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError is returned for bad arguments (unknown format, a
// non-positive count, a field not in the catalog). It is always returned
// before any request is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// HTTPError is returned by a Transport when the server answers with a
// non-2xx status.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

// TransportError is returned by a Transport when the request could not be
// completed at all.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("requesting %s: %v", e.URL, e.Err)
}

// Cause implements the causer interface from github.com/pkg/errors.
func (e *TransportError) Cause() error { return e.Err }

// Unwrap supports errors.Is/As.
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is returned when a response body can't be decoded in the
// expected format.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.Format, e.Err)
}

func (e *ParseError) Cause() error { return e.Err }

func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
