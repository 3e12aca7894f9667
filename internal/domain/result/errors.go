package result

import (
	"fmt"

	"github.com/kailas-cloud/solango/internal/domain"
)

// ParseError reports a backend response that could not be decoded.
// It matches domain.ErrNoResults with errors.Is.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{domain.ErrNoResults, e.Err} }

func parseError(url string, err error) error {
	return &ParseError{URL: url, Err: err}
}
