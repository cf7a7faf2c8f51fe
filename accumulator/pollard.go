package accumulator

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// polNode is one cached node of a pollard. Children are exclusively
// owned by their parent; there are no parent or sibling pointers, so
// every operation traverses root to leaf. A node with no children is
// either a leaf or a pruned subtree kept only for its hash; remember
// reports whether the subtree below (or at) the node contains a leaf
// that can still be proven, and an unremembered subtree is always
// collapsed to its hash.
type polNode struct {
	hash        Hash
	left, right *polNode
	remember    bool
}

// Addition is one leaf to append. Remember instructs the pollard to
// retain the cached path to the leaf so it can be proven later; an
// unremembered leaf still contributes to the roots but is pruned to
// its hash.
type Addition struct {
	Hash     Hash
	Remember bool
}

// Pollard is the full accumulator: the same externally visible state
// as a Stump fed the same update stream, plus cached subtrees that let
// it generate proofs locally and delete leaves without external
// sibling material.
//
// Not safe for concurrent mutation; callers serialize access.
type Pollard struct {
	roots  []*polNode
	leaves uint64
}

// NewPollard returns an empty accumulator.
func NewPollard() *Pollard { return &Pollard{} }

// FromRoots reconstructs a pollard whose visible roots and leaf count
// match a canonical export. The result is blind below the roots: it
// verifies and applies proof-carrying updates but cannot prove leaves
// until they are re-added with the remember flag.
func FromRoots(roots []Hash, leaves uint64) (*Pollard, error) {
	if len(roots) != numRoots(leaves) {
		return nil, fmt.Errorf("%w: %d roots for %d leaves",
			ErrShapeInconsistency, len(roots), leaves)
	}
	p := &Pollard{leaves: leaves}
	for _, root := range roots {
		p.roots = append(p.roots, &polNode{hash: root})
	}
	return p, nil
}

// Leaves returns the leaf counter. See (*Stump).Leaves for its exact
// semantics; the two structures agree verbatim.
func (p *Pollard) Leaves() uint64 { return p.leaves }

// Roots returns the root hashes, tallest tree first.
func (p *Pollard) Roots() []Hash {
	roots := make([]Hash, len(p.roots))
	for i, node := range p.roots {
		roots[i] = node.hash
	}
	return roots
}

// Verify checks a proof against the pollard's visible roots, exactly
// as a Stump with the same state would.
func (p *Pollard) Verify(proof Proof, targetHashes []Hash) (bool, error) {
	return verifyAgainst(p.Roots(), p.leaves, proof, targetHashes)
}

// ProveSingle builds an inclusion proof for one remembered leaf. It
// fails with ErrTargetNotFound if the leaf was never added, was
// deleted, or was pruned.
func (p *Pollard) ProveSingle(leaf Hash) (Proof, error) {
	if leaf.isEmpty() {
		return Proof{}, fmt.Errorf("%w: empty sentinel cannot be proven", ErrMalformedInput)
	}
	pos, path, ok := p.locate(leaf)
	if !ok {
		return Proof{}, fmt.Errorf("%w: %s", ErrTargetNotFound, leaf)
	}

	hashes := make([]Hash, 0, len(path)-1)
	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		if parent.left == path[i] {
			hashes = append(hashes, parent.right.hash)
		} else {
			hashes = append(hashes, parent.left.hash)
		}
	}
	return Proof{Targets: []uint64{pos}, Hashes: hashes}, nil
}

// BatchProof builds one proof covering all the given leaves: the union
// of their authentication paths, with every shared hash included
// exactly once. Targets are ordered ascending by position, and the
// corresponding leaf hashes must be supplied to Verify in that same
// order; Prove returns them pre-aligned.
func (p *Pollard) BatchProof(leafHashes []Hash) (Proof, error) {
	proof, _, err := p.Prove(leafHashes)
	return proof, err
}

// Prove builds a batch proof and returns the same leaf hashes
// reordered to match the proof's targets.
func (p *Pollard) Prove(leafHashes []Hash) (Proof, []Hash, error) {
	if len(leafHashes) == 0 {
		return Proof{Targets: []uint64{}, Hashes: []Hash{}}, []Hash{}, nil
	}

	seen := make(map[Hash]struct{}, len(leafHashes))
	located := make([]hashPair, 0, len(leafHashes))
	for _, leaf := range leafHashes {
		if leaf.isEmpty() {
			return Proof{}, nil, fmt.Errorf("%w: empty sentinel cannot be proven", ErrMalformedInput)
		}
		if _, ok := seen[leaf]; ok {
			return Proof{}, nil, fmt.Errorf("%w: duplicate leaf %s", ErrMalformedInput, leaf)
		}
		seen[leaf] = struct{}{}

		pos, _, ok := p.locate(leaf)
		if !ok {
			return Proof{}, nil, fmt.Errorf("%w: %s", ErrTargetNotFound, leaf)
		}
		located = append(located, hashPair{pos: pos, old: leaf})
	}
	sort.Slice(located, func(i, j int) bool { return located[i].pos < located[j].pos })

	positions := make([]uint64, len(located))
	aligned := make([]Hash, len(located))
	for i, pair := range located {
		positions[i] = pair.pos
		aligned[i] = pair.old
	}

	// Replay the verifier's pairing: any sibling not produced by the
	// targets themselves is fetched from the cache, in consumption
	// order.
	rows := treeRows(p.leaves)
	queue := slices.Clone(positions)
	hashes := make([]Hash, 0)
	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]

		row := detectRow(pos, rows)
		if p.leaves>>row&1 == 1 && pos == rootPosition(p.leaves, row, rows) {
			continue
		}
		if len(queue) > 0 && queue[0] == siblingPos(pos) {
			queue = queue[1:]
		} else {
			sib, err := p.grab(siblingPos(pos))
			if err != nil {
				return Proof{}, nil, err
			}
			hashes = append(hashes, sib.hash)
		}

		parent := parentPos(pos, rows)
		i := sort.Search(len(queue), func(i int) bool { return queue[i] >= parent })
		queue = slices.Insert(queue, i, parent)
	}
	return Proof{Targets: positions, Hashes: hashes}, aligned, nil
}

// Modify atomically applies deletions followed by additions. The proof
// must authenticate deletions against the current roots, pairing
// deletions[i] with proof.Targets[i]; on any error the pollard is
// unchanged. Deleting a leaf promotes its sibling subtree into the
// parent slot; a deleted single-leaf tree leaves the empty sentinel in
// its root slot.
func (p *Pollard) Modify(additions []Addition, deletions []Hash, proof Proof) error {
	for _, add := range additions {
		if add.Hash.isEmpty() {
			return fmt.Errorf("%w: empty sentinel cannot be added", ErrMalformedInput)
		}
	}

	computed, err := calculateRoots(p.leaves, deletions, proof, true)
	if err != nil {
		return err
	}
	rootHashes := p.Roots()
	for _, c := range computed {
		if c.idx >= len(rootHashes) || rootHashes[c.idx] != c.old {
			return ErrProofMismatch
		}
	}

	roots := p.applyDeletions(proof)
	leaves := p.leaves
	for _, add := range additions {
		roots, leaves = addNode(roots, leaves, add)
	}

	p.roots, p.leaves = roots, leaves
	return nil
}

// nodePair tracks one known slot during the deletion replay. A nil
// node marks a deleted subtree.
type nodePair struct {
	pos  uint64
	node *polNode
}

// applyDeletions rebuilds the affected root subtrees by running the
// same bottom-up pairing as calculateRoots on nodes instead of hashes.
// Untouched subtrees are reused; siblings missing from the cache are
// reconstituted as hash-only nodes from the already-verified proof.
// The receiver is not mutated.
func (p *Pollard) applyDeletions(proof Proof) []*polNode {
	roots := slices.Clone(p.roots)
	if len(proof.Targets) == 0 {
		return roots
	}

	rows := treeRows(p.leaves)
	queue := make([]nodePair, len(proof.Targets))
	for i, pos := range proof.Targets {
		queue[i] = nodePair{pos: pos}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].pos < queue[j].pos })

	next := 0
	for len(queue) > 0 {
		np := queue[0]
		queue = queue[1:]

		row := detectRow(np.pos, rows)
		if p.leaves>>row&1 == 1 && np.pos == rootPosition(p.leaves, row, rows) {
			node := np.node
			if node == nil {
				node = &polNode{}
			}
			roots[rootIndex(p.leaves, row)] = node
			continue
		}

		var sib *polNode
		sibPos := siblingPos(np.pos)
		if len(queue) > 0 && queue[0].pos == sibPos {
			sib = queue[0].node
			queue = queue[1:]
		} else {
			// Consume the proof hash to stay aligned with the
			// verification replay; prefer the cached subtree when one
			// exists.
			hash := proof.Hashes[next]
			next++
			if node, err := p.grab(sibPos); err == nil {
				sib = node
			} else {
				sib = &polNode{hash: hash}
			}
		}

		l, r := np.node, sib
		if !isLeftChild(np.pos) {
			l, r = sib, np.node
		}
		var parent *polNode
		switch {
		case l == nil && r == nil:
			// Both subtrees deleted; the parent slot is deleted too.
		case l == nil:
			parent = r
		case r == nil:
			parent = l
		default:
			parent = &polNode{
				hash:     ParentHash(l.hash, r.hash),
				left:     l,
				right:    r,
				remember: l.remember || r.remember,
			}
			if !parent.remember {
				parent.left, parent.right = nil, nil
			}
		}

		pp := nodePair{pos: parentPos(np.pos, rows), node: parent}
		i := sort.Search(len(queue), func(i int) bool { return queue[i].pos >= pp.pos })
		queue = slices.Insert(queue, i, pp)
	}
	return roots
}

// addNode appends one leaf with the same carry propagation as the
// stump's addSingle, merging cached subtrees and collapsing any merge
// that holds no remembered leaf.
func addNode(roots []*polNode, leaves uint64, add Addition) ([]*polNode, uint64) {
	node := &polNode{hash: add.Hash, remember: add.Remember}
	for n := leaves; n&1 == 1; n >>= 1 {
		root := roots[len(roots)-1]
		roots = roots[:len(roots)-1]
		if root.hash.isEmpty() {
			continue
		}
		parent := &polNode{
			hash:     ParentHash(root.hash, node.hash),
			left:     root,
			right:    node,
			remember: root.remember || node.remember,
		}
		if !parent.remember {
			parent.left, parent.right = nil, nil
		}
		node = parent
	}
	return append(roots, node), leaves + 1
}

// grab returns the cached node occupying the given slot, descending
// from the root that covers it.
func (p *Pollard) grab(pos uint64) (*polNode, error) {
	rows := treeRows(p.leaves)
	row := detectRow(pos, rows)
	idx := 0
	for r := int(rows); r >= int(row); r-- {
		if p.leaves>>uint(r)&1 == 0 {
			continue
		}
		rootPos := rootPosition(p.leaves, uint8(r), rows)
		if ancestorAt(pos, uint8(r)-row, rows) != rootPos {
			idx++
			continue
		}

		cur := p.roots[idx]
		for cr := uint8(r); cr > row; cr-- {
			if cur.left == nil || cur.right == nil {
				return nil, fmt.Errorf("%w: position %d is not cached", ErrTargetNotFound, pos)
			}
			if isLeftChild(ancestorAt(pos, cr-1-row, rows)) {
				cur = cur.left
			} else {
				cur = cur.right
			}
		}
		return cur, nil
	}
	return nil, fmt.Errorf("%w: no position %d in a forest of %d leaves",
		ErrShapeInconsistency, pos, p.leaves)
}

// locate finds a remembered leaf by root-to-leaf search, returning its
// slot and the node path from root to leaf.
func (p *Pollard) locate(leaf Hash) (uint64, []*polNode, bool) {
	rows := treeRows(p.leaves)
	idx := 0
	for r := int(rows); r >= 0; r-- {
		if p.leaves>>uint(r)&1 == 0 {
			continue
		}
		rootPos := rootPosition(p.leaves, uint8(r), rows)
		if pos, path, ok := searchLeaf(p.roots[idx], rootPos, rows, leaf); ok {
			return pos, path, true
		}
		idx++
	}
	return 0, nil, false
}

func searchLeaf(node *polNode, pos uint64, rows uint8, leaf Hash) (uint64, []*polNode, bool) {
	if node == nil || !node.remember {
		return 0, nil, false
	}
	if node.left == nil && node.right == nil {
		if node.hash == leaf {
			return pos, []*polNode{node}, true
		}
		return 0, nil, false
	}

	childPos := leftChildPos(pos, rows)
	if p, path, ok := searchLeaf(node.left, childPos, rows, leaf); ok {
		return p, append([]*polNode{node}, path...), true
	}
	if p, path, ok := searchLeaf(node.right, childPos|1, rows, leaf); ok {
		return p, append([]*polNode{node}, path...), true
	}
	return 0, nil, false
}

// MarshalJSON exports the same canonical {"roots":[...],"leaves":n}
// state as a Stump. Cached structure below the roots is not exported.
func (p *Pollard) MarshalJSON() ([]byte, error) {
	roots := p.Roots()
	if roots == nil {
		roots = []Hash{}
	}
	return json.Marshal(stumpState{Roots: roots, Leaves: p.leaves})
}

// UnmarshalJSON imports a canonical export as a blind pollard,
// equivalent to FromRoots.
func (p *Pollard) UnmarshalJSON(raw []byte) error {
	state, err := parseState(raw)
	if err != nil {
		return err
	}
	rebuilt, err := FromRoots(state.Roots, state.Leaves)
	if err != nil {
		return err
	}
	*p = *rebuilt
	return nil
}
