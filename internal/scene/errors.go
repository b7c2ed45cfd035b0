package scene

import "errors"

// Sentinel errors for scene operations.
var (
	// ErrBadParam indicates an invalid scene definition.
	ErrBadParam = errors.New("scene: bad parameter")

	// ErrNotFound indicates the named scene does not exist.
	ErrNotFound = errors.New("scene: not found")

	// ErrBusy indicates the execution pool rejected a run.
	ErrBusy = errors.New("scene: engine busy")
)
