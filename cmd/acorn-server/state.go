package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/acornlabs/acorn/accumulator"
	"github.com/acornlabs/acorn/db"
)

// State owns the server's accumulator and its durable snapshot. The
// core engine provides no locking of its own, so every access goes
// through the mutex here.
type State struct {
	mu    sync.RWMutex
	pol   *accumulator.Pollard
	store db.SnapshotStore
}

// LoadState restores the accumulator from the most recent snapshot, or
// starts empty if none exists.
func LoadState(store db.SnapshotStore) (*State, error) {
	raw, err := store.Load()
	if err != nil {
		return nil, err
	}
	pol := accumulator.NewPollard()
	if raw != nil {
		if err := json.Unmarshal(raw, pol); err != nil {
			return nil, fmt.Errorf("failed to restore snapshot: %v", err)
		}
	}
	return &State{pol: pol, store: store}, nil
}

// Modify applies one atomic update and persists the canonical export.
func (s *State) Modify(additions []accumulator.Addition, deletions []accumulator.Hash, proof accumulator.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pol.Modify(additions, deletions, proof); err != nil {
		return err
	}
	raw, err := json.Marshal(s.pol)
	if err != nil {
		return err
	}
	return s.store.Save(raw)
}

func (s *State) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.pol)
}

func (s *State) ProveSingle(leaf accumulator.Hash) (accumulator.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol.ProveSingle(leaf)
}

// BatchProofAligned returns a batch proof plus the leaf hashes in the
// proof's target order.
func (s *State) BatchProofAligned(leaves []accumulator.Hash) (accumulator.Proof, []accumulator.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol.Prove(leaves)
}

func (s *State) Verify(proof accumulator.Proof, hashes []accumulator.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol.Verify(proof, hashes)
}

func (s *State) Leaves() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pol.Leaves()
}
