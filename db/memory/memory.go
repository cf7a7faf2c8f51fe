// Package memory provides an in-memory implementation of the database
// interfaces, for tests.
package memory

import "github.com/acornlabs/acorn/db"

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// SnapshotStore keeps the snapshot in memory and records how many
// times it was saved.
type SnapshotStore struct {
	Snapshot []byte
	Saves    int
}

var _ db.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Load() ([]byte, error) {
	return dup(s.Snapshot), nil
}

func (s *SnapshotStore) Save(raw []byte) error {
	s.Snapshot = dup(raw)
	s.Saves++
	return nil
}

func (s *SnapshotStore) Close() error { return nil }
