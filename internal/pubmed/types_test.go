package pubmed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "discover", StageDiscover.String())
	require.Equal(t, "metadata", StageMetadata.String())
	require.Equal(t, "fulltext", StageFulltext.String())
	require.Equal(t, "chunk", StageChunk.String())
	require.Equal(t, "complete", StageComplete.String())
	require.Equal(t, "unknown", Stage(99).String())
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, stage := range []Stage{StageDiscover, StageMetadata, StageFulltext, StageChunk, StageComplete} {
		got, ok := ParseStage(stage.String())
		require.True(t, ok)
		require.Equal(t, stage, got)
	}

	_, ok := ParseStage("bogus")
	require.False(t, ok)
}

func TestStagesAdvanceInOrder(t *testing.T) {
	t.Parallel()

	require.Less(t, StageDiscover, StageMetadata)
	require.Less(t, StageMetadata, StageFulltext)
	require.Less(t, StageFulltext, StageChunk)
	require.Less(t, StageChunk, StageComplete)
}
