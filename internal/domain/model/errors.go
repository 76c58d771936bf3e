package model

import "errors"

// Sentinel kinds for record validation errors.
var (
	ErrMissingHandle = errors.New("missing linked handle")
	ErrNegativeScore = errors.New("negative score")
	ErrUnknownRank   = errors.New("unknown rank symbol")
)
