package remote_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/storage/remote"
	"github.com/foliavcs/folia/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientServerRoundTrip(t *testing.T) {
	backing := storage.NewMemoryAdapter()
	srv := remote.NewServer(backing, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := remote.NewClient(ts.URL)
	defer client.Close()

	ctx := context.Background()
	h, err := hashtree.Sum([]byte("snap"))
	require.NoError(t, err)
	c := vcs.Commit{ID: "c1", SnapshotHash: h, Message: "hi"}

	require.NoError(t, client.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedCommits:  []vcs.Commit{c},
		AddedBranches: []vcs.Branch{{Name: "dev1", HeadCommitID: "c1"}},
	}))

	graph, err := client.GetCommitGraph(ctx)
	require.NoError(t, err)
	b, ok := graph.Branch("dev1")
	require.True(t, ok)
	assert.Equal(t, "c1", b.HeadCommitID)

	got, err := client.GetCommits(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].SnapshotHash.Equal(h))

	require.NoError(t, client.EraseStorage(ctx))
	graph, err = client.GetCommitGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Branches())
}

func TestSubscribeReceivesPush(t *testing.T) {
	backing := storage.NewMemoryAdapter()
	srv := remote.NewServer(backing, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := remote.Subscribe(ctx, wsURL)
	require.NoError(t, err)

	client := remote.NewClient(ts.URL)
	defer client.Close()
	require.NoError(t, client.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{{Name: "dev1"}},
	}))

	select {
	case branches := <-updates:
		assert.Contains(t, branches, "dev1")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push notification")
	}
}
