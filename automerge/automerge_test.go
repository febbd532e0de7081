package automerge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/foliavcs/folia/automerge"
	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal stand-in for *repo.Repository that tracks only
// the commit-graph state automerge.Sync operates on, without a real
// entity store or hash tree, so tests can assert on the rebased delta
// content directly.
type fakeRepo struct {
	graph   *vcs.Graph
	current string
	counter int
}

func (f *fakeRepo) CurrentBranch() string { return f.current }
func (f *fakeRepo) Graph() *vcs.Graph      { return f.graph }

func (f *fakeRepo) ChronologicalCommits(name string) ([]vcs.Commit, error) {
	b, ok := f.graph.Branch(name)
	if !ok {
		return nil, fmt.Errorf("unknown branch %s", name)
	}
	if b.HeadCommitID == "" {
		return nil, nil
	}
	ancestry, err := f.graph.Ancestry(b.HeadCommitID)
	if err != nil {
		return nil, err
	}
	out := make([]vcs.Commit, len(ancestry))
	for i, c := range ancestry {
		out[len(ancestry)-1-i] = c
	}
	return out, nil
}

func (f *fakeRepo) Reset(ctx context.Context, relativeToHead int) error {
	n := -relativeToHead
	chron, err := f.ChronologicalCommits(f.current)
	if err != nil {
		return err
	}
	trailing := chron[len(chron)-n:]
	for _, c := range trailing {
		f.graph.RemoveCommit(c.ID)
	}
	target := ""
	if len(chron)-n > 0 {
		target = chron[len(chron)-n-1].ID
	}
	return f.graph.SetBranchHead(f.current, target)
}

func (f *fakeRepo) AdvanceTo(ctx context.Context, commitID string) error {
	return f.graph.SetBranchHead(f.current, commitID)
}

func (f *fakeRepo) Commit(ctx context.Context, d *delta.Delta, message string) (vcs.Commit, error) {
	branch, _ := f.graph.Branch(f.current)
	data, err := delta.Marshal(d)
	if err != nil {
		return vcs.Commit{}, err
	}
	f.counter++
	c := vcs.Commit{
		ID:        fmt.Sprintf("rebased-%d", f.counter),
		ParentID:  branch.HeadCommitID,
		Message:   message,
		DeltaData: data,
	}
	if err := f.graph.AddCommit(f.current, c); err != nil {
		return vcs.Commit{}, err
	}
	return c, nil
}

func mustMarshal(t *testing.T, d *delta.Delta) []byte {
	t.Helper()
	b, err := delta.Marshal(d)
	require.NoError(t, err)
	return b
}

func TestConcurrentUpdateConflictJuniorRewritten(t *testing.T) {
	graph := vcs.NewGraph()
	graph.AddBranch("dev1") // senior
	graph.AddBranch("dev2") // junior

	dSenior := delta.New()
	require.NoError(t, dSenior.Add(delta.NewUpdate("n",
		map[string]entity.Value{"title": "a"},
		map[string]entity.Value{"title": "S"})))
	seniorCommit := vcs.Commit{ID: "c-dev1", DeltaData: mustMarshal(t, dSenior)}
	require.NoError(t, graph.AddCommit("dev1", seniorCommit))

	dJunior := delta.New()
	require.NoError(t, dJunior.Add(delta.NewUpdate("n",
		map[string]entity.Value{"title": "a", "body": "b"},
		map[string]entity.Value{"title": "J", "body": "c"})))
	juniorCommit := vcs.Commit{ID: "c-dev2", DeltaData: mustMarshal(t, dJunior)}
	require.NoError(t, graph.AddCommit("dev2", juniorCommit))

	f := &fakeRepo{graph: graph, current: "dev2"}
	require.NoError(t, automerge.Sync(context.Background(), f))

	chron, err := f.ChronologicalCommits("dev2")
	require.NoError(t, err)
	require.Len(t, chron, 2)
	assert.Equal(t, "c-dev1", chron[0].ID)

	rebased, err := delta.Unmarshal(chron[1].DeltaData)
	require.NoError(t, err)
	c, ok := rebased.Get("n")
	require.True(t, ok)
	assert.Equal(t, entity.Value("c"), c.Forward["body"])
	_, titleDropped := c.Forward["title"]
	assert.False(t, titleDropped, "title conflict must be discarded")
}

func TestConcurrentDeleteCollapsesSilently(t *testing.T) {
	graph := vcs.NewGraph()
	graph.AddBranch("dev1")
	graph.AddBranch("dev2")

	dSenior := delta.New()
	require.NoError(t, dSenior.Add(delta.NewDelete("n", map[string]entity.Value{"title": "a"})))
	seniorCommit := vcs.Commit{ID: "c-dev1", DeltaData: mustMarshal(t, dSenior)}
	require.NoError(t, graph.AddCommit("dev1", seniorCommit))

	dJunior := delta.New()
	require.NoError(t, dJunior.Add(delta.NewDelete("n", map[string]entity.Value{"title": "a"})))
	juniorCommit := vcs.Commit{ID: "c-dev2", DeltaData: mustMarshal(t, dJunior)}
	require.NoError(t, graph.AddCommit("dev2", juniorCommit))

	f := &fakeRepo{graph: graph, current: "dev2"}
	require.NoError(t, automerge.Sync(context.Background(), f))

	chron, err := f.ChronologicalCommits("dev2")
	require.NoError(t, err)
	// the junior's own DELETE collapses entirely against the senior's;
	// no rebase commit is produced.
	assert.Len(t, chron, 1)
	assert.Equal(t, "c-dev1", chron[0].ID)
}

func TestSeniorReplicaAcceptsTrimmedCommitUnchanged(t *testing.T) {
	// dev1 pulling dev2 after dev2 already holds the trimmed commit: since
	// dev1 has no senior branches above it, Sync is a no-op.
	graph := vcs.NewGraph()
	graph.AddBranch("dev1")
	graph.AddBranch("dev2")

	d := delta.New()
	require.NoError(t, d.Add(delta.NewUpdate("n", map[string]entity.Value{"title": "a"}, map[string]entity.Value{"title": "S"})))
	require.NoError(t, graph.AddCommit("dev1", vcs.Commit{ID: "c-dev1", DeltaData: mustMarshal(t, d)}))

	f := &fakeRepo{graph: graph, current: "dev1"}
	require.NoError(t, automerge.Sync(context.Background(), f))

	chron, err := f.ChronologicalCommits("dev1")
	require.NoError(t, err)
	require.Len(t, chron, 1)
	assert.Equal(t, "c-dev1", chron[0].ID)
}
