package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrMalformedRow   = errors.New("malformed row")
	ErrUnknownDriver  = errors.New("unknown storage driver")
	ErrInvalidKey     = errors.New("invalid table key")
	ErrInvalidRatings = errors.New("invalid rating rows")
)
