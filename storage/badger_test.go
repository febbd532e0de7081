package storage_test

import (
	"context"
	"testing"

	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerAdapter(t *testing.T) *storage.BadgerAdapter {
	t.Helper()
	a, err := storage.OpenBadgerAdapter(storage.InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestBadgerAdapterApplyAndRead(t *testing.T) {
	ctx := context.Background()
	a := newTestBadgerAdapter(t)

	h, err := hashtree.Sum([]byte("snap"))
	require.NoError(t, err)
	c := vcs.Commit{ID: "c1", SnapshotHash: h, Message: "first"}

	require.NoError(t, a.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedCommits: []vcs.Commit{c},
		AddedBranches: []vcs.Branch{{Name: "dev1", HeadCommitID: "c1"}},
	}))

	got, err := a.GetCommits(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Message)
	assert.True(t, got[0].SnapshotHash.Equal(h))

	graph, err := a.GetCommitGraph(ctx)
	require.NoError(t, err)
	b, ok := graph.Branch("dev1")
	require.True(t, ok)
	assert.Equal(t, "c1", b.HeadCommitID)
}

func TestBadgerAdapterMissingCommit(t *testing.T) {
	a := newTestBadgerAdapter(t)
	_, err := a.GetCommits(context.Background(), []string{"nope"})
	assert.ErrorIs(t, err, vcs.ErrUnknownCommit)
}

func TestBadgerAdapterEraseStorage(t *testing.T) {
	ctx := context.Background()
	a := newTestBadgerAdapter(t)
	require.NoError(t, a.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{{Name: "dev1"}},
	}))
	require.NoError(t, a.EraseStorage(ctx))

	graph, err := a.GetCommitGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Branches())
}

func TestBadgerAdapterRequiresPathWhenNotInMemory(t *testing.T) {
	_, err := storage.OpenBadgerAdapter(storage.BadgerConfig{})
	assert.Error(t, err)
}
