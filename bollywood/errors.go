package bollywood

import "errors"

var (
	// ErrInvalidName is returned when an actor is created with an empty name.
	ErrInvalidName = errors.New("actor name cannot be empty")
	// ErrEngineStopping is returned when spawning on an engine that is shutting down.
	ErrEngineStopping = errors.New("engine is stopping")
	// ErrNoReceiver is returned when a message has no receiver name.
	ErrNoReceiver = errors.New("message has no receiver")
	// ErrUnknownReceiver is returned when the receiver name is not registered.
	ErrUnknownReceiver = errors.New("recipient not found")
	// ErrProcessStopped is returned when starting a process that was already stopped.
	ErrProcessStopped = errors.New("process already stopped")
	// ErrShutdownTimeout is returned when actors do not stop within the timeout.
	ErrShutdownTimeout = errors.New("engine shutdown timed out")
)
