package signature

import "errors"

// Sentinel kinds for signature verification failures. All of them map to an
// authentication failure at the HTTP boundary.
var (
	ErrEmptySecret        = errors.New("empty webhook secret")
	ErrMissingSignature   = errors.New("missing signature")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)
