package document

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEncoding marks text that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrCorrupt marks a container that cannot be opened or parsed.
	ErrCorrupt = errors.New("corrupt document")
)

// UnsupportedFormatError is returned for file extensions outside SupportedFormats.
type UnsupportedFormatError struct {
	Name      string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported format: %q has no extension", e.Name)
	}
	return fmt.Sprintf("unsupported format: %q", e.Extension)
}

// ExtractionError is returned when a document's bytes are not valid for its
// declared format.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
