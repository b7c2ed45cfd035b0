package device

import "errors"

// Sentinel errors for device operations.
// Callers match these with errors.Is; the protocol layer maps them to
// wire result codes.
var (
	// ErrBadParam indicates an argument was out of range or malformed.
	ErrBadParam = errors.New("device: bad parameter")

	// ErrNotFound indicates the device or record does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrNotSupported indicates the device or driver cannot perform the operation.
	ErrNotSupported = errors.New("device: not supported")

	// ErrAlreadyExists indicates a duplicate registration.
	ErrAlreadyExists = errors.New("device: already exists")

	// ErrQueueFull indicates the dispatcher queue rejected a task.
	ErrQueueFull = errors.New("device: queue full")

	// ErrIOFail indicates a driver-level transport failure.
	ErrIOFail = errors.New("device: io failure")
)
