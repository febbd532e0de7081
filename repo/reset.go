package repo

import (
	"context"
	"fmt"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

// Reset rewinds the current branch by -relativeToHead commits (only
// relativeToHead < 0 is supported). It composes the squish of the
// reversed deltas of the trailing commits, applies it to the head store
// and hash tree, removes those commits from the graph, and moves the
// branch head back. The resulting snapshot hash must equal the target
// commit's recorded hash, or the reset is refused.
func (r *Repository) Reset(ctx context.Context, relativeToHead int) error {
	if relativeToHead >= 0 {
		return ErrForwardResetUnsupported
	}
	if r.currentBranch == "" {
		return ErrNoCurrentBranch
	}
	n := -relativeToHead

	branch, ok := r.graph.Branch(r.currentBranch)
	if !ok {
		return fmt.Errorf("%w: %s", vcs.ErrUnknownBranch, r.currentBranch)
	}
	ancestry, err := r.graph.Ancestry(branch.HeadCommitID)
	if err != nil {
		return err
	}
	if n > len(ancestry) {
		return fmt.Errorf("%w: asked for %d, branch has %d", ErrResetPastRoot, n, len(ancestry))
	}

	trailing := ancestry[:n] // newest-first
	reversedNewestFirst := make([]*delta.Delta, n)
	for i, c := range trailing {
		d, err := delta.Unmarshal(c.DeltaData)
		if err != nil {
			return fmt.Errorf("repo: reset: %w", err)
		}
		// undoing Δ₁...Δₙ means applying their reverses in the opposite
		// order: rev(Δₙ) first, rev(Δ₁) last. trailing is already
		// newest-first (trailing[0] = Δₙ), so reversing each in place
		// keeps that order.
		reversedNewestFirst[i] = d.Reversed()
	}
	undo, err := delta.Squish(reversedNewestFirst)
	if err != nil {
		return fmt.Errorf("repo: reset: %w", err)
	}

	if err := r.store.ApplyDelta(undo); err != nil {
		return fmt.Errorf("repo: reset: %w", err)
	}
	newHash, err := hashtree.ApplyDelta(r.tree, r.store, undo)
	if err != nil {
		return fmt.Errorf("repo: reset: %w", err)
	}

	var targetHash hashtree.Hash
	var targetCommitID string
	if n < len(ancestry) {
		targetHash = ancestry[n].SnapshotHash
		targetCommitID = ancestry[n].ID
	} else {
		targetHash, err = hashtree.New().UpdateRootHash()
		if err != nil {
			return fmt.Errorf("repo: reset: %w", err)
		}
	}
	if !newHash.Equal(targetHash) {
		return fmt.Errorf("%w: reset to %s", ErrHashMismatch, targetCommitID)
	}

	removed := make([]storage.CommitMetadata, 0, n)
	for _, c := range trailing {
		removed = append(removed, storage.CommitMetadata{ID: c.ID, ParentID: c.ParentID})
	}
	if err := r.adapter.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		RemovedCommits:  removed,
		UpdatedBranches: []vcs.Branch{{Name: r.currentBranch, HeadCommitID: targetCommitID}},
	}); err != nil {
		return fmt.Errorf("repo: reset: adapter: %w", err)
	}
	for _, c := range trailing {
		r.graph.RemoveCommit(c.ID)
	}
	if err := r.graph.SetBranchHead(r.currentBranch, targetCommitID); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.ResetsTotal.Inc()
	}
	r.logger.Info("reset", "branch", r.currentBranch, "commits", n)
	return nil
}
