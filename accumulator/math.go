package accumulator

import "math/bits"

// The forest of n leaves embeds in a single perfect tree with
// treeRows(n) rows. Leaf positions occupy 0..2^rows-1 on the bottom
// row; a position at row r has exactly r leading one bits in its
// (rows+1)-bit representation, so positions sorted ascending are also
// sorted bottom row first.

// treeRows returns the number of rows needed to hold n leaves.
func treeRows(n uint64) uint8 {
	if n == 0 {
		return 0
	}
	return uint8(bits.Len64(n - 1))
}

// numRoots returns the number of root slots for n leaves.
func numRoots(n uint64) int {
	return bits.OnesCount64(n)
}

// parentPos returns the position of the parent of pos.
func parentPos(pos uint64, forestRows uint8) uint64 {
	return (pos >> 1) | (1 << forestRows)
}

// ancestorAt returns the position rise rows above pos.
func ancestorAt(pos uint64, rise, forestRows uint8) uint64 {
	if rise == 0 {
		return pos
	}
	mask := uint64(2)<<forestRows - 1
	return (pos>>rise | (mask << uint8(forestRows-rise+1))) & mask
}

// leftChildPos returns the position of the left child of pos.
func leftChildPos(pos uint64, forestRows uint8) uint64 {
	return (pos << 1) & (uint64(2)<<forestRows - 1)
}

func siblingPos(pos uint64) uint64 { return pos ^ 1 }

func isLeftChild(pos uint64) bool { return pos&1 == 0 }

// detectRow returns the row of pos, counting the bottom row as 0.
func detectRow(pos uint64, forestRows uint8) uint8 {
	marker := uint64(1) << forestRows
	var row uint8
	for row = 0; pos&marker != 0; row++ {
		marker >>= 1
	}
	return row
}

// rootPosition returns the position of the root at the given row, for a
// forest with the given leaf count. Only meaningful when bit `row` of
// leaves is set.
func rootPosition(leaves uint64, row, forestRows uint8) uint64 {
	mask := uint64(2)<<forestRows - 1
	before := leaves & (mask << (row + 1))
	shifted := (before >> row) | (mask << (forestRows + 1 - row))
	return shifted & mask
}

// rootIndex returns the index of the row's root in the tallest-first
// root slice.
func rootIndex(leaves uint64, row uint8) int {
	return bits.OnesCount64(leaves >> (row + 1))
}

// inForest reports whether pos identifies a node of the forest with the
// given leaf count: some ancestor of pos (possibly pos itself) must be
// a live root.
func inForest(pos, leaves uint64, forestRows uint8) bool {
	if pos > uint64(2)<<forestRows-2 {
		return false
	}
	row := detectRow(pos, forestRows)
	if row > forestRows {
		return false
	}
	for r := row; r <= forestRows; r++ {
		if leaves>>r&1 == 1 && ancestorAt(pos, r-row, forestRows) == rootPosition(leaves, r, forestRows) {
			return true
		}
	}
	return false
}
