package analysis

import (
	"errors"
	"fmt"
)

// Input validation failures. The request is rejected before the engine runs.
var (
	ErrEmptyFile        = errors.New("empty file")
	ErrFileTooLarge     = errors.New("file exceeds size limit")
	ErrMissingDrug      = errors.New("drug name is required")
	ErrUnreadableFormat = errors.New("unreadable variant file format")
	ErrNoVariants       = errors.New("no variant records found")
)

// InputError reports a rejected request.
type InputError struct {
	Err    error
	Detail string
}

func newInputError(err error, format string, args ...any) *InputError {
	return &InputError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is a validation failure.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
