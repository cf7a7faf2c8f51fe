package accumulator

import (
	"encoding/json"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

// testLeaf returns a distinct, non-sentinel leaf hash for each
// preimage byte.
func testLeaf(i byte) Hash {
	return ParentHash(Hash{0xaa}, Hash{i, 0x01})
}

func testLeaves(n int) []Hash {
	out := make([]Hash, n)
	for i := range out {
		out[i] = testLeaf(byte(i))
	}
	return out
}

// grow appends leaves one modify at a time.
func grow(t *testing.T, s *Stump, leaves []Hash) {
	t.Helper()
	for _, leaf := range leaves {
		require.NoError(t, s.Modify([]Hash{leaf}, nil, Proof{}))
	}
}

func TestEmptyStump(t *testing.T) {
	s := NewStump()
	require.Equal(t, uint64(0), s.Leaves())
	require.Empty(t, s.Roots())

	ok, err := s.Verify(Proof{Targets: []uint64{}, Hashes: []Hash{}}, []Hash{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRootCountLaw(t *testing.T) {
	for n := 1; n <= 64; n++ {
		s := NewStump()
		grow(t, s, testLeaves(n))
		require.Equal(t, uint64(n), s.Leaves())
		require.Len(t, s.Roots(), bits.OnesCount64(uint64(n)), "n=%d", n)
	}
}

func TestRootCountExamples(t *testing.T) {
	for _, tc := range []struct {
		n     int
		roots int
	}{{8, 1}, {7, 3}, {15, 4}} {
		s := NewStump()
		grow(t, s, testLeaves(tc.n))
		require.Len(t, s.Roots(), tc.roots)
	}
}

func TestBatchedAdditionMatchesSequential(t *testing.T) {
	batched := NewStump()
	require.NoError(t, batched.Modify(testLeaves(13), nil, Proof{}))

	sequential := NewStump()
	grow(t, sequential, testLeaves(13))

	require.Equal(t, sequential.Roots(), batched.Roots())
	require.Equal(t, sequential.Leaves(), batched.Leaves())
}

func TestInsertionOrderMatters(t *testing.T) {
	seven := NewStump()
	grow(t, seven, testLeaves(7))

	eight := NewStump()
	grow(t, eight, testLeaves(8))

	// No root of the 7-leaf forest survives into the 8-leaf forest:
	// the final carry rebuilds everything above the new leaf.
	for _, a := range seven.Roots() {
		for _, b := range eight.Roots() {
			require.NotEqual(t, a, b)
		}
	}

	// Reversed insertion order yields different roots for the same set.
	leaves := testLeaves(8)
	reversed := NewStump()
	for i := len(leaves) - 1; i >= 0; i-- {
		require.NoError(t, reversed.Modify([]Hash{leaves[i]}, nil, Proof{}))
	}
	require.NotEqual(t, eight.Roots(), reversed.Roots())
}

func TestStumpRejectsEmptySentinelAddition(t *testing.T) {
	s := NewStump()
	err := s.Modify([]Hash{{}}, nil, Proof{})
	require.ErrorIs(t, err, ErrMalformedInput)
	require.Equal(t, uint64(0), s.Leaves())
}

func TestStumpModifyAtomicOnBadProof(t *testing.T) {
	s := NewStump()
	grow(t, s, testLeaves(8))
	roots, leaves := s.Roots(), s.Leaves()

	// Proof with a hash count inconsistent with its targets.
	err := s.Modify(nil, []Hash{testLeaf(0)}, Proof{Targets: []uint64{0}})
	require.ErrorIs(t, err, ErrMalformedInput)

	// Well-shaped proof with garbage hashes.
	garbage := Proof{Targets: []uint64{0}, Hashes: []Hash{testLeaf(9), testLeaf(10), testLeaf(11)}}
	err = s.Modify(nil, []Hash{testLeaf(0)}, garbage)
	require.ErrorIs(t, err, ErrProofMismatch)

	// Target outside the forest.
	err = s.Modify(nil, []Hash{testLeaf(0)}, Proof{Targets: []uint64{200}, Hashes: []Hash{}})
	require.ErrorIs(t, err, ErrShapeInconsistency)

	require.Equal(t, roots, s.Roots())
	require.Equal(t, leaves, s.Leaves())
}

func TestStumpVerifyHashCountMismatch(t *testing.T) {
	s := NewStump()
	grow(t, s, testLeaves(4))

	_, err := s.Verify(Proof{Targets: []uint64{0}, Hashes: []Hash{}}, []Hash{testLeaf(0), testLeaf(1)})
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = s.Verify(Proof{Targets: []uint64{}, Hashes: []Hash{testLeaf(0)}}, []Hash{})
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestStumpRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 15, 33} {
		s := NewStump()
		grow(t, s, testLeaves(n))

		raw, err := json.Marshal(s)
		require.NoError(t, err)

		back := NewStump()
		require.NoError(t, json.Unmarshal(raw, back))
		require.Equal(t, s.Leaves(), back.Leaves())
		require.Equal(t, s.Roots(), back.Roots())

		// And the round-trip is byte-stable.
		raw2, err := json.Marshal(back)
		require.NoError(t, err)
		require.Equal(t, raw, raw2)
	}
}

func TestStumpImportRejectsBadShape(t *testing.T) {
	back := NewStump()
	err := json.Unmarshal([]byte(`{"roots":[],"leaves":3}`), back)
	require.ErrorIs(t, err, ErrShapeInconsistency)

	err = json.Unmarshal([]byte(`{"roots":[],"leaves":0,"extra":1}`), back)
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestStumpFollowsPollard(t *testing.T) {
	// A stump fed the same update stream as a pollard, with the
	// pollard producing the deletion proofs, tracks it verbatim.
	p := NewPollard()
	s := NewStump()

	adds := make([]Addition, 11)
	for i, leaf := range testLeaves(11) {
		adds[i] = Addition{Hash: leaf, Remember: true}
	}
	require.NoError(t, p.Modify(adds, nil, Proof{}))
	require.NoError(t, s.Modify(testLeaves(11), nil, Proof{}))
	require.Equal(t, p.Roots(), s.Roots())

	dels := []Hash{testLeaf(2), testLeaf(3), testLeaf(8)}
	proof, aligned, err := p.Prove(dels)
	require.NoError(t, err)

	ok, err := s.Verify(proof, aligned)
	require.NoError(t, err)
	require.True(t, ok)

	next := Addition{Hash: testLeaf(77), Remember: true}
	require.NoError(t, p.Modify([]Addition{next}, aligned, proof))
	require.NoError(t, s.Modify([]Hash{next.Hash}, aligned, proof))

	require.Equal(t, p.Roots(), s.Roots())
	require.Equal(t, p.Leaves(), s.Leaves())
}
