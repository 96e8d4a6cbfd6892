package metadata

import (
	"errors"
	"fmt"
)

// FormatError indicates that data does not start with a valid header.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image header: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid image header: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError returns true if err is, or wraps, a FormatError.
func IsFormatError(err error) bool {
	var formatErr *FormatError
	return errors.As(err, &formatErr)
}
