// Package vcs implements the commit graph: immutable commits threaded by
// parent id, grouped under per-device branches ordered by seniority.
package vcs

import "github.com/foliavcs/folia/hashtree"

// Commit is an immutable unit of history: a delta applied to a parent
// state, together with the resulting snapshot hash. Commit ids are fresh
// random strings, not content-derived, so squishing a run of commits
// never invalidates ids referenced from another branch.
type Commit struct {
	ID           string
	ParentID     string // empty only for the first commit on a branch
	SnapshotHash hashtree.Hash
	Timestamp    int64
	Message      string
	DeltaData    []byte
}

// Branch is a named pointer to the tip of a line of commits. HeadCommitID
// is empty for a branch with no commits yet.
type Branch struct {
	Name         string
	HeadCommitID string
}
