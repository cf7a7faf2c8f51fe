package accumulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Stump is the minimal accumulator: the ordered root hashes (tallest
// tree first) and the leaf counter. It holds no tree structure; every
// update that deletes leaves must carry a proof authenticating them
// against the current roots.
//
// The zero value is an empty accumulator. Stumps are not safe for
// concurrent mutation; callers serialize access.
type Stump struct {
	roots  []Hash
	leaves uint64
}

// NewStump returns an empty accumulator.
func NewStump() *Stump { return &Stump{} }

// Leaves returns the leaf counter. It counts every leaf ever added;
// deletions leave it unchanged and mark the vacated subtree with the
// empty sentinel instead, so the number of root slots is always the
// popcount of the counter.
func (s *Stump) Leaves() uint64 { return s.leaves }

// Roots returns a copy of the root hashes, tallest tree first. A
// fully-deleted tree occupies its slot as the empty sentinel.
func (s *Stump) Roots() []Hash { return slices.Clone(s.roots) }

// Verify replays the proof using targetHashes as the leaves being
// proven, pairing targetHashes[i] with proof.Targets[i], and compares
// every recomputed root against the stored roots. It returns false on
// any root mismatch and an error only for malformed or
// shape-inconsistent input.
func (s *Stump) Verify(proof Proof, targetHashes []Hash) (bool, error) {
	return verifyAgainst(s.roots, s.leaves, proof, targetHashes)
}

// Modify atomically applies deletions followed by additions. The proof
// must authenticate deletions against the current roots; on any error
// the stump is unchanged.
func (s *Stump) Modify(additions []Hash, deletions []Hash, proof Proof) error {
	for _, add := range additions {
		if add.isEmpty() {
			return fmt.Errorf("%w: empty sentinel cannot be added", ErrMalformedInput)
		}
	}

	computed, err := calculateRoots(s.leaves, deletions, proof, true)
	if err != nil {
		return err
	}
	roots := slices.Clone(s.roots)
	for _, c := range computed {
		if c.idx >= len(roots) || roots[c.idx] != c.old {
			return ErrProofMismatch
		}
		roots[c.idx] = c.new
	}

	leaves := s.leaves
	for _, add := range additions {
		roots, leaves = addSingle(roots, leaves, add)
	}

	s.roots, s.leaves = roots, leaves
	return nil
}

// addSingle appends one leaf by carry propagation: while the low bit of
// the counter is set, the shortest root merges with the new node,
// exactly like a binary increment. An empty root is absorbed; the new
// node is promoted in its place unchanged.
func addSingle(roots []Hash, leaves uint64, add Hash) ([]Hash, uint64) {
	node := add
	for n := leaves; n&1 == 1; n >>= 1 {
		root := roots[len(roots)-1]
		roots = roots[:len(roots)-1]
		if !root.isEmpty() {
			node = ParentHash(root, node)
		}
	}
	return append(roots, node), leaves + 1
}

// stumpState is the canonical export schema shared with Pollard.
type stumpState struct {
	Roots  []Hash `json:"roots"`
	Leaves uint64 `json:"leaves"`
}

// MarshalJSON exports the canonical {"roots":[...],"leaves":n} state.
func (s *Stump) MarshalJSON() ([]byte, error) {
	roots := s.roots
	if roots == nil {
		roots = []Hash{}
	}
	return json.Marshal(stumpState{Roots: roots, Leaves: s.leaves})
}

// UnmarshalJSON imports a canonical export. Import and export
// round-trip exactly.
func (s *Stump) UnmarshalJSON(raw []byte) error {
	state, err := parseState(raw)
	if err != nil {
		return err
	}
	s.roots, s.leaves = state.Roots, state.Leaves
	return nil
}

func parseState(raw []byte) (stumpState, error) {
	var state stumpState
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&state); err != nil {
		return stumpState{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(state.Roots) != numRoots(state.Leaves) {
		return stumpState{}, fmt.Errorf("%w: %d roots for %d leaves",
			ErrShapeInconsistency, len(state.Roots), state.Leaves)
	}
	if state.Leaves == 0 {
		state.Roots = nil
	}
	return state, nil
}
