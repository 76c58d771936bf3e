package rank

import "errors"

// Sentinel kinds for rank table and mutation errors.
var (
	ErrEmptyTable    = errors.New("rank table is empty")
	ErrInvalidTable  = errors.New("invalid rank table")
	ErrNegativeDelta = errors.New("negative score delta")
)
