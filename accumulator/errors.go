package accumulator

import "errors"

var (
	// ErrMalformedInput reports input that is rejected before any
	// hashing: a hash string that is not 64 lowercase hex characters, a
	// proof whose hash count does not match its target structure, or an
	// unparsable payload.
	ErrMalformedInput = errors.New("malformed input")

	// ErrProofMismatch reports a well-formed proof whose recomputed
	// roots do not match the stored roots.
	ErrProofMismatch = errors.New("proof does not match roots")

	// ErrTargetNotFound reports a proof request for a leaf the pollard
	// does not hold: never added, already deleted, or not remembered.
	ErrTargetNotFound = errors.New("target leaf not found")

	// ErrShapeInconsistency reports positions that do not exist in a
	// forest with the current leaf count.
	ErrShapeInconsistency = errors.New("inconsistent with forest shape")
)
