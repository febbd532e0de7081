// Package automerge implements the deterministic seniority-based
// reconciliation protocol: when two device branches have committed from
// a shared ancestor, the branch appearing earlier in the graph's branch
// list always wins, and the junior branch's divergent commits are
// rebased on top with any per-key conflicts dropped.
package automerge

import (
	"context"
	"fmt"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/vcs"
)

// Repository is the subset of *repo.Repository the protocol needs,
// defined locally so this package does not import repo (and, through it,
// metrics) and so tests can supply a graph-only fake.
type Repository interface {
	CurrentBranch() string
	Graph() *vcs.Graph
	ChronologicalCommits(branchName string) ([]vcs.Commit, error)
	Reset(ctx context.Context, relativeToHead int) error
	AdvanceTo(ctx context.Context, commitID string) error
	Commit(ctx context.Context, d *delta.Delta, message string) (vcs.Commit, error)
}

// Sync reconciles repo's current branch against every other branch now
// present in its commit graph (the caller is expected to have already
// synced the graph itself, e.g. via Repository.Pull, so this step only
// resolves concurrent commits by seniority).
func Sync(ctx context.Context, r Repository) error {
	local := r.CurrentBranch()
	if local == "" {
		return nil
	}
	senior, err := seniorBranches(r.Graph(), local)
	if err != nil {
		return err
	}
	if len(senior) == 0 {
		return nil
	}

	pos := 0
	for {
		remaining, err := dropShortBranches(r, senior, pos)
		if err != nil {
			return err
		}
		senior = remaining
		if len(senior) == 0 {
			return nil
		}

		dominant, err := commitAt(r, senior[0], pos)
		if err != nil {
			return err
		}
		senior, err = keepMatching(r, senior, pos, dominant)
		if err != nil {
			return err
		}

		localChron, err := r.ChronologicalCommits(local)
		if err != nil {
			return err
		}
		if pos < len(localChron) && localChron[pos].ID == dominant.ID {
			pos++
			continue
		}

		if err := rebase(ctx, r, localChron, pos, dominant); err != nil {
			return err
		}
		pos++
	}
}

// seniorBranches returns every branch more senior than local, in
// seniority order.
func seniorBranches(graph *vcs.Graph, local string) ([]string, error) {
	var out []string
	for _, b := range graph.Branches() {
		if b.Name == local {
			break
		}
		out = append(out, b.Name)
	}
	return out, nil
}

func dropShortBranches(r Repository, names []string, pos int) ([]string, error) {
	var out []string
	for _, name := range names {
		chron, err := r.ChronologicalCommits(name)
		if err != nil {
			return nil, err
		}
		if len(chron) >= pos+1 {
			out = append(out, name)
		}
	}
	return out, nil
}

func commitAt(r Repository, name string, pos int) (vcs.Commit, error) {
	chron, err := r.ChronologicalCommits(name)
	if err != nil {
		return vcs.Commit{}, err
	}
	if pos >= len(chron) {
		return vcs.Commit{}, fmt.Errorf("automerge: branch %s has no commit at position %d", name, pos)
	}
	return chron[pos], nil
}

func keepMatching(r Repository, names []string, pos int, dominant vcs.Commit) ([]string, error) {
	var out []string
	for _, name := range names {
		c, err := commitAt(r, name, pos)
		if err != nil {
			return nil, err
		}
		if c.ID == dominant.ID {
			out = append(out, name)
		}
	}
	return out, nil
}

// rebase discards the local branch's commits from pos onward, adopts
// dominant, then re-applies each discarded commit's delta trimmed
// against dominant's, re-committing with fresh ids.
func rebase(ctx context.Context, r Repository, localChron []vcs.Commit, pos int, dominant vcs.Commit) error {
	ahead := localChron[pos:]
	if len(ahead) > 0 {
		if err := r.Reset(ctx, -len(ahead)); err != nil {
			return fmt.Errorf("automerge: rebase: %w", err)
		}
	}
	if err := r.AdvanceTo(ctx, dominant.ID); err != nil {
		return fmt.Errorf("automerge: rebase: %w", err)
	}

	dominantDelta, err := delta.Unmarshal(dominant.DeltaData)
	if err != nil {
		return fmt.Errorf("automerge: rebase: %w", err)
	}
	for _, c := range ahead {
		localDelta, err := delta.Unmarshal(c.DeltaData)
		if err != nil {
			return fmt.Errorf("automerge: rebase: %w", err)
		}
		trimmed := trimConflicting(localDelta, dominantDelta)
		reportConflicts(r, localDelta, trimmed)
		if trimmed.Len() == 0 {
			continue
		}
		if _, err := r.Commit(ctx, trimmed, c.Message); err != nil {
			return fmt.Errorf("automerge: rebase: %w", err)
		}
		reportRebase(r)
	}
	return nil
}

// conflictRecorder and rebaseRecorder are optional metrics hooks a
// Repository implementation may satisfy; checked via type assertion so
// this package never imports a metrics library directly.
type conflictRecorder interface{ RecordMergeConflict() }
type rebaseRecorder interface{ RecordMergeRebase() }

func reportConflicts(r Repository, before, after *delta.Delta) {
	rec, ok := r.(conflictRecorder)
	if !ok {
		return
	}
	dropped := before.Len() - after.Len()
	for i := 0; i < dropped; i++ {
		rec.RecordMergeConflict()
	}
}

func reportRebase(r Repository) {
	if rec, ok := r.(rebaseRecorder); ok {
		rec.RecordMergeRebase()
	}
}

// trimConflicting drops or narrows entries of local that collide with
// dominant's writes: a dominant CREATE or DELETE on an entity drops
// local's Change for it entirely; a dominant UPDATE drops local's
// CREATE/DELETE on that entity entirely, or strips the keys dominant also
// touched from a local UPDATE.
func trimConflicting(local, dominant *delta.Delta) *delta.Delta {
	out := delta.New()
	for _, c := range local.Changes() {
		dc, ok := dominant.Get(c.EntityID)
		if !ok {
			_ = out.Add(c)
			continue
		}
		switch dc.KindOf() {
		case delta.Create, delta.Delete:
			continue
		case delta.Update:
			if c.KindOf() != delta.Update {
				continue
			}
			forward := dropKeys(c.Forward, dc.Forward)
			reverse := dropKeys(c.Reverse, dc.Forward)
			if len(forward) == 0 && len(reverse) == 0 {
				continue
			}
			_ = out.Add(delta.NewUpdate(c.EntityID, reverse, forward))
		default:
			_ = out.Add(c)
		}
	}
	return out
}

func dropKeys(m, drop map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, ok := drop[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}
