// Package signature authenticates grading-pipeline callbacks.
//
// The pipeline signs the exact request body bytes with HMAC-SHA256 and
// presents the digest as "sha256=<hex>". Verification must run over the
// literal byte stream as received; re-serializing a parsed structure would
// falsify legitimate requests on whitespace or key-order differences.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the algorithm tag expected in front of the hex digest.
const Prefix = "sha256="

// Verifier checks presented signature tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify recomputes the keyed hash over body and compares it against the
// presented token in constant time. It returns ErrMissingSignature for an
// absent token, ErrMalformedSignature when the token lacks the algorithm
// prefix or carries a non-hex digest, and ErrSignatureMismatch when the
// digests differ.
func (v *Verifier) Verify(body []byte, presented string) error {
	if presented == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(presented, Prefix) {
		return ErrMalformedSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(presented, Prefix))
	if err != nil || len(got) != sha256.Size {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign produces the token the pipeline would present for body. Used by
// tests and local tooling.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}
