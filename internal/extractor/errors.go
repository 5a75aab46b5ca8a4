package extractor

import "fmt"

// ErrorKind classifies why a document yielded nothing at all.
type ErrorKind string

const (
	KindEmptyInput       ErrorKind = "empty_input"
	KindUnparsableMarkup ErrorKind = "unparsable_markup"
)

// ExtractionError is returned when a document cannot be read as markup.
// Missing fields are not errors.
type ExtractionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extract: %s", e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
