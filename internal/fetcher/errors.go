package fetcher

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies a failed retrieval.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindHTTPStatus       ErrorKind = "http_status"
	KindNetwork          ErrorKind = "network"
	KindRetriesExhausted ErrorKind = "retries_exhausted"
)

// FetchError describes why a tender page could not be retrieved.
// For KindRetriesExhausted, Err holds the FetchError of the last attempt.
type FetchError struct {
	Kind       ErrorKind
	ID         string
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected HTTP status %d", e.ID, e.StatusCode)
	case KindRetriesExhausted:
		return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.ID, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.ID, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, a FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == kind
}
