package accumulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProofCanonicalSchema(t *testing.T) {
	leaf := testLeaf(0)
	raw := []byte(`{"targets":[0,5],"hashes":["` + leaf.String() + `"]}`)
	proof, err := ParseProof(raw)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 5}, proof.Targets)
	require.Equal(t, []Hash{leaf}, proof.Hashes)

	// Round-trips through the canonical encoding.
	enc, err := proof.Marshal()
	require.NoError(t, err)
	back, err := ParseProof(enc)
	require.NoError(t, err)
	require.Equal(t, proof, back)
}

func TestParseProofRejectsOtherShapes(t *testing.T) {
	for _, tc := range []string{
		`{"targets":[0],"proof":[]}`,               // legacy field name
		`{"targets":[0],"hashes":[],"extra":true}`, // unknown field
		`{"targets":[0],"hashes":["abcd"]}`,        // short hash
		`{"targets":["0"],"hashes":[]}`,            // wrong target type
		`[]`,
		`{"targets":[0],"hashes":[]} trailing`,
	} {
		_, err := ParseProof([]byte(tc))
		require.ErrorIs(t, err, ErrMalformedInput, "input %s", tc)
	}
}

func TestCalculateRootsShapeErrors(t *testing.T) {
	s := NewStump()
	grow(t, s, testLeaves(8))

	// Duplicate targets.
	_, err := s.Verify(
		Proof{Targets: []uint64{3, 3}, Hashes: []Hash{}},
		[]Hash{testLeaf(3), testLeaf(3)},
	)
	require.ErrorIs(t, err, ErrShapeInconsistency)

	// A target overlapping another target's ancestor.
	_, err = s.Verify(
		Proof{Targets: []uint64{0, 1, 8}, Hashes: []Hash{testLeaf(9), testLeaf(10), testLeaf(11)}},
		[]Hash{testLeaf(0), testLeaf(1), testLeaf(2)},
	)
	require.ErrorIs(t, err, ErrShapeInconsistency)

	// Unused proof hashes.
	p := NewPollard()
	adds := make([]Addition, 8)
	for i, leaf := range testLeaves(8) {
		adds[i] = Addition{Hash: leaf, Remember: true}
	}
	require.NoError(t, p.Modify(adds, nil, Proof{}))
	proof, err := p.ProveSingle(testLeaf(0))
	require.NoError(t, err)

	padded := Proof{Targets: proof.Targets, Hashes: append(proof.Hashes, testLeaf(9))}
	_, err = s.Verify(padded, []Hash{testLeaf(0)})
	require.ErrorIs(t, err, ErrMalformedInput)

	// The empty sentinel is never a valid target hash.
	_, err = s.Verify(Proof{Targets: []uint64{0}, Hashes: []Hash{}}, []Hash{{}})
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestVerifySingleAgainstRoots(t *testing.T) {
	// Eight leaves reduce to a single root R8. A proof for leaf 0 must
	// verify against R8 and against nothing else.
	p := NewPollard()
	adds := make([]Addition, 8)
	for i, leaf := range testLeaves(8) {
		adds[i] = Addition{Hash: leaf, Remember: true}
	}
	require.NoError(t, p.Modify(adds, nil, Proof{}))
	require.Len(t, p.Roots(), 1)

	proof, err := p.ProveSingle(testLeaf(0))
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, proof.Targets)
	require.Len(t, proof.Hashes, 3)

	s := NewStump()
	grow(t, s, testLeaves(8))
	ok, err := s.Verify(proof, []Hash{testLeaf(0)})
	require.NoError(t, err)
	require.True(t, ok)

	// Wrong leaf hash for the target.
	ok, err = s.Verify(proof, []Hash{testLeaf(1)})
	require.NoError(t, err)
	require.False(t, ok)

	// Any other stored root sequence must reject the same proof.
	other := NewStump()
	grow(t, other, testLeaves(9)[1:])
	ok, err = other.Verify(proof, []Hash{testLeaf(0)})
	require.NoError(t, err)
	require.False(t, ok)
}
