package sequence

import "errors"

// Errors returned by GetOrLoad. No buffer is registered when they occur.
var (
	ErrInvalidPath   = errors.New("sequence: empty path")
	ErrPathNotFound  = errors.New("sequence: path not found")
	ErrEmptySequence = errors.New("sequence: no files")
)
