package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore()

	raw, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, raw)

	buf := []byte("state")
	require.NoError(t, store.Save(buf))
	buf[0] = 'x' // the store keeps its own copy

	raw, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, []byte("state"), raw)
	require.Equal(t, 1, store.Saves)
}
