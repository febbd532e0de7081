package vcs_test

import (
	"testing"

	"github.com/foliavcs/folia/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCommitAdvancesBranchHead(t *testing.T) {
	g := vcs.NewGraph()
	g.AddBranch("dev1")
	require.NoError(t, g.AddCommit("dev1", vcs.Commit{ID: "c1"}))
	b, ok := g.Branch("dev1")
	require.True(t, ok)
	assert.Equal(t, "c1", b.HeadCommitID)

	require.NoError(t, g.AddCommit("dev1", vcs.Commit{ID: "c2", ParentID: "c1"}))
	b, _ = g.Branch("dev1")
	assert.Equal(t, "c2", b.HeadCommitID)
}

func TestAddCommitUnknownBranch(t *testing.T) {
	g := vcs.NewGraph()
	err := g.AddCommit("missing", vcs.Commit{ID: "c1"})
	assert.ErrorIs(t, err, vcs.ErrUnknownBranch)
}

func TestAncestryOrderAndValidate(t *testing.T) {
	g := vcs.NewGraph()
	g.AddBranch("dev1")
	require.NoError(t, g.AddCommit("dev1", vcs.Commit{ID: "c1"}))
	require.NoError(t, g.AddCommit("dev1", vcs.Commit{ID: "c2", ParentID: "c1"}))
	require.NoError(t, g.AddCommit("dev1", vcs.Commit{ID: "c3", ParentID: "c2"}))

	ancestry, err := g.Ancestry("c3")
	require.NoError(t, err)
	require.Len(t, ancestry, 3)
	assert.Equal(t, []string{"c3", "c2", "c1"}, []string{ancestry[0].ID, ancestry[1].ID, ancestry[2].ID})

	assert.NoError(t, g.Validate())
}

func TestValidateCatchesDanglingHead(t *testing.T) {
	g := vcs.NewGraph()
	g.AddBranch("dev1")
	require.NoError(t, g.SetBranchHead("dev1", "ghost"))
	err := g.Validate()
	assert.ErrorIs(t, err, vcs.ErrDanglingHead)
}

func TestBranchSeniorityOrderPreserved(t *testing.T) {
	g := vcs.NewGraph()
	g.AddBranch("dev1")
	g.AddBranch("dev2")
	branches := g.Branches()
	require.Len(t, branches, 2)
	assert.Equal(t, "dev1", branches[0].Name)
	assert.Equal(t, "dev2", branches[1].Name)
}

func TestRemoveBranch(t *testing.T) {
	g := vcs.NewGraph()
	g.AddBranch("dev1")
	require.NoError(t, g.RemoveBranch("dev1"))
	_, ok := g.Branch("dev1")
	assert.False(t, ok)
	assert.ErrorIs(t, g.RemoveBranch("dev1"), vcs.ErrUnknownBranch)
}
