package thread

import "errors"

var (
	// ErrNotFound means a referenced task, comment or parent comment does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input was rejected before reaching a store.
	ErrValidation = errors.New("validation failed")
	// ErrTransport means the call to the backing store or remote API
	// itself failed.
	ErrTransport = errors.New("transport failure")
)
