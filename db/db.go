// Package db implements database wrappers that match a common interface.
package db

// SnapshotStore is the interface the server uses to persist the
// accumulator's canonical export between restarts. Only the root set
// and leaf counter are ever persisted.
type SnapshotStore interface {
	// Load returns the most recent snapshot, or nil if none has been
	// saved yet.
	Load() ([]byte, error)
	// Save replaces the stored snapshot.
	Save(raw []byte) error

	Close() error
}
