// Package accumulator implements a utreexo-style hash accumulator: a
// dynamic set of 32-byte leaves represented compactly by the roots of a
// forest of perfect merkle trees, with compact inclusion proofs that
// can be verified against the roots alone.
package accumulator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash is an opaque 32-byte leaf or node value. Equality is
// byte-equality. The zero value is the reserved "empty" sentinel that
// marks the root slot of a fully-deleted tree; callers must not use it
// as a leaf.
type Hash [32]byte

// ParseHash decodes exactly 64 lowercase hex characters into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 64 {
		return h, fmt.Errorf("%w: hash must be 64 hex characters, got %d", ErrMalformedInput, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return h, fmt.Errorf("%w: hash contains non-hex character %q", ErrMalformedInput, c)
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	copy(h[:], raw)
	return h, nil
}

// HashFromBytes copies a 32-byte slice into a Hash.
func HashFromBytes(raw []byte) (Hash, error) {
	var h Hash
	if len(raw) != 32 {
		return h, fmt.Errorf("%w: hash must be exactly 32 bytes, got %d", ErrMalformedInput, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) isEmpty() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

func (h *Hash) UnmarshalJSON(raw []byte) error {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return fmt.Errorf("%w: hash must be a JSON string", ErrMalformedInput)
	}
	parsed, err := ParseHash(string(raw[1 : len(raw)-1]))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParentHash returns the hash of an internal node given its two
// children: SHA-256 over the 64-byte concatenation left || right. It is
// order-sensitive and must be identical everywhere an accumulator's
// roots are compared.
func ParentHash(left, right Hash) Hash {
	var input [64]byte
	copy(input[:32], left[:])
	copy(input[32:], right[:])
	return sha256.Sum256(input[:])
}
