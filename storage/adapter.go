// Package storage defines the persistence adapter boundary a Repository
// depends on, plus the in-memory and embedded-database implementations
// of it.
package storage

import (
	"context"

	"github.com/foliavcs/folia/vcs"
)

// CommitMetadata identifies a commit without its delta payload, used for
// the removed side of an InternalRepoUpdate where the payload is
// irrelevant.
type CommitMetadata struct {
	ID       string
	ParentID string
}

// InternalRepoUpdate is the minimal set of graph changes produced by a
// single commit, reset, or pull, applied atomically by an Adapter.
type InternalRepoUpdate struct {
	AddedCommits    []vcs.Commit
	RemovedCommits  []CommitMetadata
	AddedBranches   []vcs.Branch
	UpdatedBranches []vcs.Branch
	RemovedBranches []string
}

// IsEmpty reports whether the update has nothing to apply.
func (u InternalRepoUpdate) IsEmpty() bool {
	return len(u.AddedCommits) == 0 && len(u.RemovedCommits) == 0 &&
		len(u.AddedBranches) == 0 && len(u.UpdatedBranches) == 0 && len(u.RemovedBranches) == 0
}

// Adapter is the persistence boundary a Repository treats as the source
// of truth; the in-memory head store and hash tree are always derived
// from it. Implementations must apply ApplyUpdate atomically: partial
// application of an InternalRepoUpdate is a correctness bug.
type Adapter interface {
	GetCommitGraph(ctx context.Context) (*vcs.Graph, error)
	GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error)
	ApplyUpdate(ctx context.Context, update InternalRepoUpdate) error
	Close() error
	EraseStorage(ctx context.Context) error
}
