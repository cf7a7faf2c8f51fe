package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
)

const leveldbSnapshotKey = "accumulator-state"

func dup(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// ldbSnapshotStore implements the SnapshotStore interface over a
// LevelDB database.
type ldbSnapshotStore struct {
	conn *leveldb.DB
}

func NewLDBSnapshotStore(file string) (SnapshotStore, error) {
	conn, err := leveldb.OpenFile(file, nil)
	if errors.IsCorrupted(err) {
		conn, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &ldbSnapshotStore{conn}, nil
}

func (ldb *ldbSnapshotStore) Load() ([]byte, error) {
	raw, err := ldb.conn.Get([]byte(leveldbSnapshotKey), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return dup(raw), nil
}

func (ldb *ldbSnapshotStore) Save(raw []byte) error {
	return ldb.conn.Put([]byte(leveldbSnapshotKey), raw, nil)
}

func (ldb *ldbSnapshotStore) Close() error {
	return ldb.conn.Close()
}
