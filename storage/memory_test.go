package storage_test

import (
	"context"
	"testing"

	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapterApplyAndRead(t *testing.T) {
	ctx := context.Background()
	a := storage.NewMemoryAdapter()

	err := a.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{{Name: "dev1"}},
		AddedCommits:  []vcs.Commit{{ID: "c1"}},
		UpdatedBranches: []vcs.Branch{
			{Name: "dev1", HeadCommitID: "c1"},
		},
	})
	require.NoError(t, err)

	graph, err := a.GetCommitGraph(ctx)
	require.NoError(t, err)
	b, ok := graph.Branch("dev1")
	require.True(t, ok)
	assert.Equal(t, "c1", b.HeadCommitID)

	commits, err := a.GetCommits(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "c1", commits[0].ID)
}

func TestMemoryAdapterMissingCommit(t *testing.T) {
	a := storage.NewMemoryAdapter()
	_, err := a.GetCommits(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, vcs.ErrUnknownCommit)
}

func TestMemoryAdapterEraseStorage(t *testing.T) {
	ctx := context.Background()
	a := storage.NewMemoryAdapter()
	require.NoError(t, a.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{{Name: "dev1"}},
	}))
	require.NoError(t, a.EraseStorage(ctx))
	graph, err := a.GetCommitGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Branches())
}
