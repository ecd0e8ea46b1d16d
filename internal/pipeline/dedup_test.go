package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

func TestIndexGatesDiscovered(t *testing.T) {
	t.Parallel()

	idx := NewIndex(newFakeClock())
	require.False(t, idx.Seen("111"))

	idx.MarkDiscovered("111")
	require.True(t, idx.Seen("111"))
	require.False(t, idx.IsCompleted("111"))

	idx.MarkCompleted("111")
	require.True(t, idx.IsCompleted("111"))
}

func TestIndexSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	idx := NewIndex(clk)
	idx.MarkDiscovered("222")
	idx.MarkDiscovered("111")
	idx.MarkCompleted("111")

	snap := idx.Snapshot()
	require.Equal(t, []string{"111", "222"}, snap.IDs, "snapshot IDs are sorted")
	require.Equal(t, []string{"111"}, snap.CompletedIDs)
	require.Equal(t, 2, snap.TotalProcessed)
	require.Equal(t, clk.Now(), snap.LastUpdated)

	restored := NewIndex(newFakeClock())
	restored.Load(snap)
	require.True(t, restored.Seen("111"))
	require.True(t, restored.Seen("222"))
	require.True(t, restored.IsCompleted("111"))
	require.False(t, restored.IsCompleted("222"))
	require.False(t, restored.Dirty(), "loading a snapshot leaves the index clean")
}

func TestIndexDirtyTracking(t *testing.T) {
	t.Parallel()

	idx := NewIndex(newFakeClock())
	require.False(t, idx.Dirty())

	idx.MarkDiscovered("111")
	require.True(t, idx.Dirty())

	idx.MarkClean()
	require.False(t, idx.Dirty())

	// Re-marking an already-present ID does not dirty the index.
	idx.MarkDiscovered("111")
	require.False(t, idx.Dirty())

	idx.MarkCompleted("111")
	require.True(t, idx.Dirty())
}

func TestIndexTotalNeverShrinksOnLoad(t *testing.T) {
	t.Parallel()

	idx := NewIndex(newFakeClock())
	idx.Load(pubmed.DedupSnapshot{IDs: []string{"1", "2", "3"}, TotalProcessed: 1})
	snap := idx.Snapshot()
	require.Equal(t, 3, snap.TotalProcessed, "total is at least the discovered set size")
}
