package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/foliavcs/folia/vcs"
)

// MemoryAdapter is an Adapter backed by an in-process graph, used for
// tests and for two replicas exercising pull/merge within one process.
type MemoryAdapter struct {
	mu    sync.Mutex
	graph *vcs.Graph
}

// NewMemoryAdapter returns an empty MemoryAdapter with no branches.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{graph: vcs.NewGraph()}
}

// GetCommitGraph returns a structural copy of the adapter's graph.
func (a *MemoryAdapter) GetCommitGraph(ctx context.Context) (*vcs.Graph, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := vcs.NewGraph()
	for _, c := range a.graph.Commits() {
		out.PutCommit(c)
	}
	for _, b := range a.graph.Branches() {
		out.AddBranch(b.Name)
		if b.HeadCommitID != "" {
			if err := out.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// GetCommits returns the commits named by ids, erroring on the first
// missing one.
func (a *MemoryAdapter) GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]vcs.Commit, 0, len(ids))
	for _, id := range ids {
		c, ok := a.graph.Commit(id)
		if !ok {
			return nil, fmt.Errorf("storage: memory: %w: %s", vcs.ErrUnknownCommit, id)
		}
		out = append(out, c)
	}
	return out, nil
}

// ApplyUpdate applies update to the adapter's graph as a single
// in-process critical section.
func (a *MemoryAdapter) ApplyUpdate(ctx context.Context, update InternalRepoUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rc := range update.RemovedCommits {
		a.graph.RemoveCommit(rc.ID)
	}
	for _, c := range update.AddedCommits {
		a.graph.PutCommit(c)
	}
	for _, name := range update.RemovedBranches {
		if err := a.graph.RemoveBranch(name); err != nil {
			return err
		}
	}
	for _, b := range update.AddedBranches {
		a.graph.AddBranch(b.Name)
		if b.HeadCommitID != "" {
			if err := a.graph.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
				return err
			}
		}
	}
	for _, b := range update.UpdatedBranches {
		if err := a.graph.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for the in-memory adapter.
func (a *MemoryAdapter) Close() error { return nil }

// EraseStorage discards all branches and commits.
func (a *MemoryAdapter) EraseStorage(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.graph = vcs.NewGraph()
	return nil
}
