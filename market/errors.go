package market

import "errors"

var (
	// ErrEmptyTitle is returned when a listing or buyer target has no title.
	ErrEmptyTitle = errors.New("title cannot be empty")
	// ErrInvalidPrice is returned for prices that are not positive.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidInterval is returned for a non-positive buyer request interval.
	ErrInvalidInterval = errors.New("request interval must be positive")
	// ErrUnknownSeller is returned when a seller name is not known to the simulation.
	ErrUnknownSeller = errors.New("unknown seller")
)
