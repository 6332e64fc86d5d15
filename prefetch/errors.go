package prefetch

import "errors"

var (
	// ErrQueueReused is returned when Start is called on a queue that has
	// already been started or closed. Queues are single use.
	ErrQueueReused = errors.New("prefetch: queue already started")
	// ErrNotStarted is returned by Next on a queue that was never started.
	ErrNotStarted = errors.New("prefetch: queue not started")
	// ErrClosed is returned for work submitted to a closed stream.
	ErrClosed = errors.New("prefetch: closed")
	// ErrInvalidCapacity is returned for a queue capacity below 1.
	ErrInvalidCapacity = errors.New("prefetch: capacity must be at least 1")
	// ErrUnknownDevice is returned by ParseDevice for an unrecognized id.
	ErrUnknownDevice = errors.New("prefetch: unknown device")
	// ErrNotTransferred is returned when reading a device buffer that was
	// never filled.
	ErrNotTransferred = errors.New("prefetch: buffer not transferred")
)
