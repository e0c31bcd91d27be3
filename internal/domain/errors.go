package domain

import "errors"

// Domain errors
var (
	ErrJobNotFound      = errors.New("job not found")
	ErrResultNotFound   = errors.New("result not found")
	ErrResultNotWritten = errors.New("result document could not be written")
	ErrImageNotFound    = errors.New("page image not found")
	ErrInvalidPage      = errors.New("invalid page number")
	ErrCancelled        = errors.New("processing cancelled")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
