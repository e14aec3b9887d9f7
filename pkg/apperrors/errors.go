package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrFetchFailed wraps backend failures during a collection read.
	// The cached collection is left untouched.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrWriteFailed wraps backend failures during create, update or delete.
	// The cached collection is never mutated when this is returned.
	ErrWriteFailed = errors.New("write failed")

	ErrInvalidTimestamp      = errors.New("invalid timestamp")
	ErrMalformedRow          = errors.New("malformed row")
	ErrInvalidStrength       = errors.New("invalid connection strength")
	ErrInvalidProfile        = errors.New("invalid profile")
	ErrInvalidConnectionType = errors.New("invalid connection type")
	ErrSelfConnection        = errors.New("profile cannot connect to itself")
	ErrInvalidConnection     = errors.New("invalid connection")

	// ErrViewClosed is returned when a result arrives for a view that was torn down.
	ErrViewClosed = errors.New("view closed")
)
