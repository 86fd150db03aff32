package device

import "errors"

// Acquisition errors. All of them are fatal: there is no software fallback.
var (
	// ErrNoBackend is returned when the requested HAL backend is not compiled in.
	ErrNoBackend = errors.New("device: HAL backend not available")

	// ErrNoAdapter is returned when no adapter matches the request.
	ErrNoAdapter = errors.New("device: no compatible GPU adapter")

	// ErrDeviceRequest is returned when the selected adapter refuses to open a device.
	ErrDeviceRequest = errors.New("device: device request failed")

	// ErrSessionClosed is returned when using a session after Drain or Close.
	ErrSessionClosed = errors.New("device: session is closed")

	// ErrPollLoopPanic is returned by PollLoop.Stop, and passed to pending
	// reads, when a poll pass panicked.
	ErrPollLoopPanic = errors.New("device: poll loop panic")
)
