package model

import "errors"

// Sentinel errors for model parsing.
var (
	ErrInvalidScope = errors.New("invalid scope")
)
