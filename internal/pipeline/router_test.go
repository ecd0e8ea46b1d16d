package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

func TestDispatchRoutesByStage(t *testing.T) {
	t.Parallel()

	r := NewRouter(4)
	ctx := context.Background()

	for _, stage := range []pubmed.Stage{pubmed.StageMetadata, pubmed.StageFulltext, pubmed.StageChunk} {
		item := pubmed.WorkItem{ContentID: "11", Stage: stage}
		require.NoError(t, r.Dispatch(ctx, item))
		require.Equal(t, 1, r.Depth(stage))
	}

	got, ok := drain(r.Source(pubmed.StageFulltext))
	require.True(t, ok)
	require.Equal(t, pubmed.StageFulltext, got.Stage)
	require.Equal(t, 0, r.Depth(pubmed.StageFulltext))
}

func TestDispatchRejectsTerminalStages(t *testing.T) {
	t.Parallel()

	r := NewRouter(4)
	ctx := context.Background()

	require.Error(t, r.Dispatch(ctx, pubmed.WorkItem{Stage: pubmed.StageDiscover}))
	require.Error(t, r.Dispatch(ctx, pubmed.WorkItem{Stage: pubmed.StageComplete}))
	require.Nil(t, r.Source(pubmed.StageComplete))
}

func TestDispatchBlocksOnFullChannel(t *testing.T) {
	t.Parallel()

	r := NewRouter(1)
	ctx, cancel := context.WithCancel(context.Background())
	item := pubmed.WorkItem{ContentID: "11", Stage: pubmed.StageMetadata}
	require.NoError(t, r.Dispatch(ctx, item))

	cancel()
	err := r.Dispatch(ctx, item)
	require.ErrorIs(t, err, context.Canceled)
}
