package builder

import (
	"errors"
	"fmt"
)

// BuildError wraps the failure of one build stage. Use errors.As to reach
// the typed cause (elfimg.ParseError, elfimg.SymbolNotFoundError,
// elfimg.AddressRangeError or IOError).
type BuildError struct {
	Stage Stage
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage a build failed in, or "" if err is not a
// BuildError.
func StageOf(err error) Stage {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Stage
	}
	return ""
}

// IOError indicates a failure reading an executable or writing the image.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ChecksumMismatchError indicates that the CRC stored in an image header
// does not match the image content.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: header has 0x%08X, image content gives 0x%08X",
		e.Expected, e.Actual)
}

// VerificationError indicates that an image is not acceptable for the
// device: inconsistent layout or an incompatible version.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	if e.Reason == "" {
		return "image verification failed"
	}
	return fmt.Sprintf("image verification failed: %s", e.Reason)
}
