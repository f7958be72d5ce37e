package snapshot

import "errors"

// Sentinel errors for snapshot requests.
var (
	ErrInvalidLimit = errors.New("top-n must be at least 1")
)
