package accumulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Proof authenticates a set of target positions against an
// accumulator's roots. Hashes holds every sibling hash that is not
// derivable from the targets' own hashes, in consumption order:
// ascending position within a row, rows bottom to top.
//
// The JSON encoding is the one canonical schema
// {"targets":[...],"hashes":["<64 hex>",...]}; any other shape is
// rejected as malformed.
type Proof struct {
	Targets []uint64 `json:"targets"`
	Hashes  []Hash   `json:"hashes"`
}

// ParseProof decodes the canonical proof schema, rejecting unknown
// fields and malformed hash strings before any hashing happens.
func ParseProof(raw []byte) (Proof, error) {
	var p Proof
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if dec.More() {
		return Proof{}, fmt.Errorf("%w: trailing data after proof", ErrMalformedInput)
	}
	return p, nil
}

// Marshal returns the canonical JSON encoding of the proof.
func (p Proof) Marshal() ([]byte, error) {
	if p.Targets == nil {
		p.Targets = []uint64{}
	}
	if p.Hashes == nil {
		p.Hashes = []Hash{}
	}
	return json.Marshal(p)
}

// computedRoot is one root recomputed by a proof replay: its index in
// the tallest-first root slice, the value implied by the current
// leaves, and the value after the targets are deleted.
type computedRoot struct {
	idx      int
	old, new Hash
}

// hashPair tracks a known node during replay. old is its current
// hash; new is its hash after deletion, with the empty sentinel
// marking a deleted subtree.
type hashPair struct {
	pos      uint64
	old, new Hash
}

// calculateRoots replays the bottom-up recomputation described by the
// proof, pairing targetHashes[i] with proof.Targets[i]. At each level a
// known node is paired with either the next known node (when it is the
// sibling) or the next unconsumed proof hash. It returns every root the
// replay reaches; comparing those against stored roots is the caller's
// job.
//
// When deleting, each target contributes the empty sentinel to the
// "new" side of the computation and an empty node's sibling is
// promoted unchanged, yielding the post-deletion roots.
func calculateRoots(leaves uint64, targetHashes []Hash, proof Proof, deleting bool) ([]computedRoot, error) {
	if len(targetHashes) != len(proof.Targets) {
		return nil, fmt.Errorf("%w: %d target hashes for %d targets",
			ErrMalformedInput, len(targetHashes), len(proof.Targets))
	}
	if len(proof.Targets) == 0 {
		if len(proof.Hashes) != 0 {
			return nil, fmt.Errorf("%w: %d proof hashes with no targets",
				ErrMalformedInput, len(proof.Hashes))
		}
		return nil, nil
	}

	rows := treeRows(leaves)
	queue := make([]hashPair, len(proof.Targets))
	for i, pos := range proof.Targets {
		if targetHashes[i].isEmpty() {
			return nil, fmt.Errorf("%w: empty sentinel as target hash", ErrMalformedInput)
		}
		queue[i] = hashPair{pos: pos, old: targetHashes[i], new: targetHashes[i]}
		if deleting {
			queue[i].new = Hash{}
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].pos < queue[j].pos })
	for i, pair := range queue {
		if i > 0 && queue[i-1].pos == pair.pos {
			return nil, fmt.Errorf("%w: duplicate target %d", ErrShapeInconsistency, pair.pos)
		}
		if !inForest(pair.pos, leaves, rows) {
			return nil, fmt.Errorf("%w: no position %d in a forest of %d leaves",
				ErrShapeInconsistency, pair.pos, leaves)
		}
	}

	var computed []computedRoot
	next := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		row := detectRow(node.pos, rows)
		if leaves>>row&1 == 1 && node.pos == rootPosition(leaves, row, rows) {
			computed = append(computed, computedRoot{rootIndex(leaves, row), node.old, node.new})
			continue
		}

		var sib hashPair
		if len(queue) > 0 && queue[0].pos == siblingPos(node.pos) {
			sib = queue[0]
			queue = queue[1:]
		} else {
			if next >= len(proof.Hashes) {
				return nil, fmt.Errorf("%w: ran out of proof hashes at position %d",
					ErrMalformedInput, node.pos)
			}
			sib = hashPair{pos: siblingPos(node.pos), old: proof.Hashes[next], new: proof.Hashes[next]}
			next++
		}

		l, r := node, sib
		if !isLeftChild(l.pos) {
			l, r = sib, node
		}
		parent := hashPair{pos: parentPos(node.pos, rows), old: ParentHash(l.old, r.old)}
		switch {
		case l.new.isEmpty() && r.new.isEmpty():
			// Both subtrees deleted; the parent is deleted too.
		case l.new.isEmpty():
			parent.new = r.new
		case r.new.isEmpty():
			parent.new = l.new
		default:
			parent.new = ParentHash(l.new, r.new)
		}

		var err error
		if queue, err = insertPair(queue, parent); err != nil {
			return nil, err
		}
	}
	if next != len(proof.Hashes) {
		return nil, fmt.Errorf("%w: %d unused proof hashes", ErrMalformedInput, len(proof.Hashes)-next)
	}
	return computed, nil
}

// insertPair adds p to the position-sorted queue. A collision means the
// proof claimed both a node and one of its descendants.
func insertPair(queue []hashPair, p hashPair) ([]hashPair, error) {
	i := sort.Search(len(queue), func(i int) bool { return queue[i].pos >= p.pos })
	if i < len(queue) && queue[i].pos == p.pos {
		return nil, fmt.Errorf("%w: targets overlap at position %d", ErrShapeInconsistency, p.pos)
	}
	queue = append(queue, hashPair{})
	copy(queue[i+1:], queue[i:])
	queue[i] = p
	return queue, nil
}

// verifyAgainst replays the proof and compares every reached root to
// the stored roots. It reports false on any mismatch and an error only
// for malformed or shape-inconsistent input.
func verifyAgainst(roots []Hash, leaves uint64, proof Proof, targetHashes []Hash) (bool, error) {
	computed, err := calculateRoots(leaves, targetHashes, proof, false)
	if err != nil {
		return false, err
	}
	for _, c := range computed {
		if c.idx >= len(roots) || roots[c.idx] != c.old {
			return false, nil
		}
	}
	return true, nil
}
