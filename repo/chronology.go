package repo

import (
	"context"
	"fmt"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

// ChronologicalCommits returns branchName's commits oldest-first: the
// reverse of the parent-walk ancestry from its head.
func (r *Repository) ChronologicalCommits(branchName string) ([]vcs.Commit, error) {
	branch, ok := r.graph.Branch(branchName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", vcs.ErrUnknownBranch, branchName)
	}
	if branch.HeadCommitID == "" {
		return nil, nil
	}
	ancestry, err := r.graph.Ancestry(branch.HeadCommitID)
	if err != nil {
		return nil, err
	}
	out := make([]vcs.Commit, len(ancestry))
	for i, c := range ancestry {
		out[len(ancestry)-1-i] = c
	}
	return out, nil
}

// AdvanceTo applies commitID's delta to the head store and hash tree
// (commitID must already exist in the graph and must name a commit whose
// parent is the repository's current snapshot), then moves the current
// branch's head pointer to it. Used by the auto-merge protocol to adopt
// a senior commit without creating a new one.
func (r *Repository) AdvanceTo(ctx context.Context, commitID string) error {
	if r.currentBranch == "" {
		return ErrNoCurrentBranch
	}
	c, ok := r.graph.Commit(commitID)
	if !ok {
		return fmt.Errorf("%w: %s", vcs.ErrUnknownCommit, commitID)
	}
	d, err := delta.Unmarshal(c.DeltaData)
	if err != nil {
		return fmt.Errorf("repo: advance: %w", err)
	}
	if err := r.store.ApplyDelta(d); err != nil {
		return fmt.Errorf("repo: advance: %w", err)
	}
	newHash, err := hashtree.ApplyDelta(r.tree, r.store, d)
	if err != nil {
		return fmt.Errorf("repo: advance: %w", err)
	}
	if !newHash.Equal(c.SnapshotHash) {
		return fmt.Errorf("%w: advance to %s", ErrHashMismatch, commitID)
	}
	if err := r.adapter.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		UpdatedBranches: []vcs.Branch{{Name: r.currentBranch, HeadCommitID: commitID}},
	}); err != nil {
		return fmt.Errorf("repo: advance: adapter: %w", err)
	}
	return r.graph.SetBranchHead(r.currentBranch, commitID)
}
