package repo

import (
	"context"
	"fmt"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

// Remote is either another in-process Repository or a raw storage
// adapter; both can answer the two questions a pull needs.
type Remote interface {
	GetCommitGraph(ctx context.Context) (*vcs.Graph, error)
	GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error)
}

// GetCommitGraph lets a Repository itself serve as a pull Remote.
func (r *Repository) GetCommitGraph(ctx context.Context) (*vcs.Graph, error) {
	return r.graph, nil
}

// GetCommits lets a Repository itself serve as a pull Remote.
func (r *Repository) GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error) {
	out := make([]vcs.Commit, 0, len(ids))
	for _, id := range ids {
		c, ok := r.graph.Commit(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", vcs.ErrUnknownCommit, id)
		}
		out = append(out, c)
	}
	return out, nil
}

// inferRepoChangesFromGraphs diffs local against remote, producing the
// slim update a pull must apply: commits and branches present in remote
// but not local are added, those present in local but not remote are
// removed, and any branch whose head id differs is updated.
func inferRepoChangesFromGraphs(local, remote *vcs.Graph) storage.InternalRepoUpdate {
	var update storage.InternalRepoUpdate

	localCommits := local.Commits()
	remoteCommits := remote.Commits()
	for id, c := range remoteCommits {
		if _, ok := localCommits[id]; !ok {
			update.AddedCommits = append(update.AddedCommits, c)
		}
	}
	for id, c := range localCommits {
		if _, ok := remoteCommits[id]; !ok {
			update.RemovedCommits = append(update.RemovedCommits, storage.CommitMetadata{ID: id, ParentID: c.ParentID})
		}
	}

	localBranches := make(map[string]vcs.Branch)
	for _, b := range local.Branches() {
		localBranches[b.Name] = b
	}
	remoteBranches := make(map[string]vcs.Branch)
	for _, b := range remote.Branches() {
		remoteBranches[b.Name] = b
	}
	for name, rb := range remoteBranches {
		lb, ok := localBranches[name]
		if !ok {
			update.AddedBranches = append(update.AddedBranches, rb)
			continue
		}
		if lb.HeadCommitID != rb.HeadCommitID {
			update.UpdatedBranches = append(update.UpdatedBranches, rb)
		}
	}
	for name := range localBranches {
		if _, ok := remoteBranches[name]; !ok {
			update.RemovedBranches = append(update.RemovedBranches, name)
		}
	}
	return update
}

// Pull fetches remote's commit graph, computes the minimal update versus
// the local graph, persists it through the adapter, and — if caching is
// enabled — mirrors it into the in-memory cache: drop removed commits,
// insert added ones, replay the ancestry between the local and remote
// head of the current branch against the head store and hash tree, and
// verify the resulting root hash against the remote branch's recorded
// snapshot hash.
func (r *Repository) Pull(ctx context.Context, remote Remote) error {
	err := r.pull(ctx, remote)
	if r.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.metrics.PullsTotal.WithLabelValues(outcome).Inc()
	}
	return err
}

func (r *Repository) pull(ctx context.Context, remote Remote) error {
	remoteGraph, err := remote.GetCommitGraph(ctx)
	if err != nil {
		return fmt.Errorf("repo: pull: %w", err)
	}
	update := inferRepoChangesFromGraphs(r.graph, remoteGraph)
	if update.IsEmpty() {
		return nil
	}

	addedIDs := make([]string, 0, len(update.AddedCommits))
	for _, c := range update.AddedCommits {
		addedIDs = append(addedIDs, c.ID)
	}
	hydrated, err := remote.GetCommits(ctx, addedIDs)
	if err != nil {
		return fmt.Errorf("repo: pull: hydrate: %w", err)
	}
	if len(hydrated) != len(addedIDs) {
		return fmt.Errorf("%w: requested %d, got %d", ErrMissingCommitDelta, len(addedIDs), len(hydrated))
	}
	update.AddedCommits = hydrated

	for _, name := range update.RemovedBranches {
		if name == r.currentBranch {
			return ErrRemoveCurrentBranch
		}
	}

	if err := r.adapter.ApplyUpdate(ctx, update); err != nil {
		return fmt.Errorf("repo: pull: adapter: %w", err)
	}

	if !r.caching {
		return nil
	}
	return r.mirrorUpdate(update, remoteGraph)
}

func (r *Repository) mirrorUpdate(update storage.InternalRepoUpdate, remoteGraph *vcs.Graph) error {
	var priorHead string
	if r.currentBranch != "" {
		if b, ok := r.graph.Branch(r.currentBranch); ok {
			priorHead = b.HeadCommitID
		}
	}

	for _, rc := range update.RemovedCommits {
		r.graph.RemoveCommit(rc.ID)
	}
	for _, c := range update.AddedCommits {
		r.graph.PutCommit(c)
	}
	for _, name := range update.RemovedBranches {
		if err := r.graph.RemoveBranch(name); err != nil {
			return err
		}
	}
	for _, b := range update.AddedBranches {
		r.graph.AddBranch(b.Name)
		if b.HeadCommitID != "" {
			if err := r.graph.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
				return err
			}
		}
	}
	for _, b := range update.UpdatedBranches {
		if err := r.graph.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
			return err
		}
	}

	if r.currentBranch == "" {
		return nil
	}
	branch, ok := r.graph.Branch(r.currentBranch)
	if !ok || branch.HeadCommitID == priorHead {
		return nil
	}

	commitsBehind, err := ancestryBetween(r.graph, priorHead, branch.HeadCommitID)
	if err != nil {
		return fmt.Errorf("repo: pull: %w", err)
	}
	if len(commitsBehind) == 0 {
		return nil
	}
	deltas := make([]*delta.Delta, len(commitsBehind))
	for i, c := range commitsBehind {
		d, err := delta.Unmarshal(c.DeltaData)
		if err != nil {
			return fmt.Errorf("repo: pull: %w", err)
		}
		deltas[i] = d
	}
	net, err := delta.Squish(deltas)
	if err != nil {
		return fmt.Errorf("repo: pull: %w", err)
	}
	if err := r.store.ApplyDelta(net); err != nil {
		return fmt.Errorf("repo: pull: %w", err)
	}
	newHash, err := hashtree.ApplyDelta(r.tree, r.store, net)
	if err != nil {
		return fmt.Errorf("repo: pull: %w", err)
	}
	if remoteBranch, ok := remoteGraph.Branch(r.currentBranch); ok {
		if headCommit, ok := remoteGraph.Commit(remoteBranch.HeadCommitID); ok && !newHash.Equal(headCommit.SnapshotHash) {
			return fmt.Errorf("%w: pull of %s", ErrHashMismatch, r.currentBranch)
		}
	}
	r.logger.Info("pulled", "branch", r.currentBranch, "commits", len(commitsBehind))
	return nil
}

// ancestryBetween returns the commits on graph's history from the child
// of fromID (exclusive) through toID (inclusive), oldest-first, by
// walking toID's ancestry and truncating at fromID.
func ancestryBetween(graph *vcs.Graph, fromID, toID string) ([]vcs.Commit, error) {
	if toID == "" {
		return nil, nil
	}
	ancestry, err := graph.Ancestry(toID)
	if err != nil {
		return nil, err
	}
	var newestFirst []vcs.Commit
	for _, c := range ancestry {
		if c.ID == fromID {
			break
		}
		newestFirst = append(newestFirst, c)
	}
	oldestFirst := make([]vcs.Commit, len(newestFirst))
	for i, c := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = c
	}
	return oldestFirst, nil
}

// pullFromGraph hydrates the head store and hash tree from scratch given
// an already-fetched commit graph, used by Open.
func (r *Repository) pullFromGraph(ctx context.Context, graph *vcs.Graph) error {
	branch, ok := graph.Branch(r.currentBranch)
	if !ok || branch.HeadCommitID == "" {
		if _, err := r.tree.UpdateRootHash(); err != nil {
			return err
		}
		return nil
	}
	ancestry, err := graph.Ancestry(branch.HeadCommitID)
	if err != nil {
		return fmt.Errorf("repo: open: %w", err)
	}
	oldestFirst := make([]vcs.Commit, len(ancestry))
	for i, c := range ancestry {
		oldestFirst[len(ancestry)-1-i] = c
	}
	deltas := make([]*delta.Delta, len(oldestFirst))
	for i, c := range oldestFirst {
		d, err := delta.Unmarshal(c.DeltaData)
		if err != nil {
			return fmt.Errorf("repo: open: %w", err)
		}
		deltas[i] = d
	}
	net, err := delta.Squish(deltas)
	if err != nil {
		return fmt.Errorf("repo: open: %w", err)
	}
	if err := r.store.ApplyDelta(net); err != nil {
		return fmt.Errorf("repo: open: %w", err)
	}
	newHash, err := hashtree.ApplyDelta(r.tree, r.store, net)
	if err != nil {
		return fmt.Errorf("repo: open: %w", err)
	}
	headCommit, ok := graph.Commit(branch.HeadCommitID)
	if !ok {
		return fmt.Errorf("repo: open: %w: %s", vcs.ErrUnknownCommit, branch.HeadCommitID)
	}
	if !newHash.Equal(headCommit.SnapshotHash) {
		return fmt.Errorf("%w: open %s", ErrHashMismatch, r.currentBranch)
	}
	return nil
}
