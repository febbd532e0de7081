// Package repo ties the head entity store, the hash tree, and the commit
// graph together behind commit/reset/pull, all mediated by a storage
// adapter that is treated as the source of truth.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/entitystore"
	"github.com/foliavcs/folia/hashtree"
	"github.com/foliavcs/folia/idgen"
	"github.com/foliavcs/folia/metrics"
	"github.com/foliavcs/folia/storage"
	"github.com/foliavcs/folia/vcs"
)

var (
	// ErrNoCurrentBranch is returned by commit/reset when no branch is
	// selected.
	ErrNoCurrentBranch = errors.New("repo: no current branch set")
	// ErrHashMismatch is returned when a recomputed snapshot hash does not
	// equal the one recorded on a commit.
	ErrHashMismatch = errors.New("repo: snapshot hash mismatch")
	// ErrForwardResetUnsupported is returned for reset requests with
	// relativeToHead >= 0.
	ErrForwardResetUnsupported = errors.New("repo: forward reset unsupported")
	// ErrResetPastRoot is returned when a reset asks for more commits than
	// exist on the current branch.
	ErrResetPastRoot = errors.New("repo: reset past root")
	// ErrMissingCommitDelta is returned when a pull's hydration step
	// cannot find delta data for a commit it must apply.
	ErrMissingCommitDelta = errors.New("repo: missing commit delta")
	// ErrRemoveCurrentBranch is returned when a pull would remove the
	// locally active branch.
	ErrRemoveCurrentBranch = errors.New("repo: cannot remove current branch")
)

// Clock abstracts wall-clock time so tests can supply a fixed value.
type Clock func() time.Time

// Config controls how a Repository is opened or created.
type Config struct {
	DefaultBranch string                    `yaml:"defaultBranch"`
	Indexes       []entitystore.IndexConfig `yaml:"-"`
}

// Repository is the client-embedded coordination point: head store,
// commit graph, hash tree, current branch, and the storage adapter that
// backs all three.
type Repository struct {
	adapter Adapter
	logger  *slog.Logger
	clock   Clock
	ids     *idgen.Generator

	store         *entitystore.Store
	tree          *hashtree.Tree
	graph         *vcs.Graph
	currentBranch string
	caching       bool
	metrics       *metrics.Metrics
}

// Adapter is the subset of storage.Adapter a Repository needs; defined
// locally so tests can supply lightweight fakes without importing the
// storage package's concrete adapters.
type Adapter interface {
	GetCommitGraph(ctx context.Context) (*vcs.Graph, error)
	GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error)
	ApplyUpdate(ctx context.Context, update storage.InternalRepoUpdate) error
	Close() error
	EraseStorage(ctx context.Context) error
}

// Option configures a Repository at construction.
type Option func(*Repository)

// WithLogger sets a non-default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(r *Repository) { r.clock = c }
}

// WithIDGenerator overrides the commit id generator, for deterministic
// tests.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(r *Repository) { r.ids = g }
}

// WithMetrics attaches a metrics sink; commit/pull/reset outcomes and hash
// recompute latency are reported against it. Nil-safe: a Repository with
// no metrics attached simply skips reporting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// RecordMergeConflict reports one local Change dropped whole by the
// auto-merge protocol. Part of the optional metrics surface automerge.Sync uses via a
// type assertion, so the automerge package never imports metrics directly.
func (r *Repository) RecordMergeConflict() {
	if r.metrics != nil {
		r.metrics.MergeConflictsTotal.Inc()
	}
}

// RecordMergeRebase reports a junior commit rebased onto a senior branch.
func (r *Repository) RecordMergeRebase() {
	if r.metrics != nil {
		r.metrics.MergeRebasesTotal.Inc()
	}
}

func newRepository(adapter Adapter, indexes []entitystore.IndexConfig, opts []Option) (*Repository, error) {
	store, err := entitystore.New(indexes)
	if err != nil {
		return nil, fmt.Errorf("repo: %w", err)
	}
	r := &Repository{
		adapter: adapter,
		logger:  slog.Default(),
		clock:   time.Now,
		ids:     idgen.New(),
		store:   store,
		tree:    hashtree.New(),
		caching: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create initializes a brand-new repository: empty head store and hash
// tree, with cfg.DefaultBranch created on the adapter and selected as
// current.
func Create(ctx context.Context, adapter Adapter, cfg Config, opts ...Option) (*Repository, error) {
	r, err := newRepository(adapter, cfg.Indexes, opts)
	if err != nil {
		return nil, err
	}
	graph := vcs.NewGraph()
	graph.AddBranch(cfg.DefaultBranch)
	if err := adapter.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedBranches: []vcs.Branch{{Name: cfg.DefaultBranch}},
	}); err != nil {
		return nil, fmt.Errorf("repo: create: %w", err)
	}
	r.graph = graph
	r.currentBranch = cfg.DefaultBranch
	if _, err := r.tree.UpdateRootHash(); err != nil {
		return nil, err
	}
	r.logger.Info("repository created", "branch", cfg.DefaultBranch)
	return r, nil
}

// Open loads the commit graph from adapter, then pulls to hydrate the
// head store and hash tree from the configured default branch.
func Open(ctx context.Context, adapter Adapter, cfg Config, opts ...Option) (*Repository, error) {
	r, err := newRepository(adapter, cfg.Indexes, opts)
	if err != nil {
		return nil, err
	}
	graph, err := adapter.GetCommitGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo: open: %w", err)
	}
	r.graph = graph
	r.currentBranch = cfg.DefaultBranch
	if _, ok := graph.Branch(cfg.DefaultBranch); !ok {
		return nil, fmt.Errorf("repo: open: %w: %s", vcs.ErrUnknownBranch, cfg.DefaultBranch)
	}
	if err := r.pullFromGraph(ctx, graph); err != nil {
		return nil, err
	}
	r.logger.Info("repository opened", "branch", cfg.DefaultBranch)
	return r, nil
}

// CurrentBranch returns the name of the branch new commits land on.
func (r *Repository) CurrentBranch() string {
	return r.currentBranch
}

// SetCurrentBranch switches which branch commit/reset operate against.
func (r *Repository) SetCurrentBranch(name string) error {
	if _, ok := r.graph.Branch(name); !ok {
		return fmt.Errorf("repo: %w: %s", vcs.ErrUnknownBranch, name)
	}
	r.currentBranch = name
	return nil
}

// Store exposes the head store for reads.
func (r *Repository) Store() *entitystore.Store {
	return r.store
}

// Graph exposes a read-only view of the commit graph.
func (r *Repository) Graph() *vcs.Graph {
	return r.graph
}

// RootHash returns the current snapshot digest.
func (r *Repository) RootHash() hashtree.Hash {
	return r.tree.RootHash()
}

// Commit applies delta to the head store and hash tree, appends a new
// Commit to the current branch, and persists the minimal update through
// the adapter.
func (r *Repository) Commit(ctx context.Context, d *delta.Delta, message string) (vcs.Commit, error) {
	if r.currentBranch == "" {
		return vcs.Commit{}, ErrNoCurrentBranch
	}
	branch, ok := r.graph.Branch(r.currentBranch)
	if !ok {
		return vcs.Commit{}, fmt.Errorf("%w: %s", vcs.ErrUnknownBranch, r.currentBranch)
	}

	if err := r.store.ApplyDelta(d); err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, fmt.Errorf("repo: commit: %w", err)
	}
	newHash, err := r.recomputeHash(d)
	if err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, fmt.Errorf("repo: commit: %w", err)
	}

	id, err := r.ids.ID()
	if err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, fmt.Errorf("repo: commit: %w", err)
	}
	deltaData, err := delta.Marshal(d)
	if err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, fmt.Errorf("repo: commit: %w", err)
	}
	commit := vcs.Commit{
		ID:           id,
		ParentID:     branch.HeadCommitID,
		SnapshotHash: newHash,
		Timestamp:    r.clock().UnixNano(),
		Message:      message,
		DeltaData:    deltaData,
	}

	if err := r.adapter.ApplyUpdate(ctx, storage.InternalRepoUpdate{
		AddedCommits:    []vcs.Commit{commit},
		UpdatedBranches: []vcs.Branch{{Name: r.currentBranch, HeadCommitID: id}},
	}); err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, fmt.Errorf("repo: commit: adapter: %w", err)
	}
	if err := r.graph.AddCommit(r.currentBranch, commit); err != nil {
		r.reportCommit("error")
		return vcs.Commit{}, err
	}
	r.reportCommit("ok")
	r.logger.Info("committed", "branch", r.currentBranch, "commit", id, "message", message)
	return commit, nil
}

func (r *Repository) reportCommit(outcome string) {
	if r.metrics != nil {
		r.metrics.CommitsTotal.WithLabelValues(outcome).Inc()
	}
}

// recomputeHash applies d to the hash tree, timing the recompute against
// the attached metrics sink if any.
func (r *Repository) recomputeHash(d *delta.Delta) (hashtree.Hash, error) {
	start := r.clock()
	h, err := hashtree.ApplyDelta(r.tree, r.store, d)
	if r.metrics != nil {
		r.metrics.ObserveHashRecompute(r.clock().Sub(start))
	}
	return h, err
}

// entities returns a full-scan snapshot of every live entity.
func (r *Repository) entities() []*entity.Entity {
	cur := r.store.Find(entitystore.Filter{})
	defer cur.Close()
	var out []*entity.Entity
	for cur.Next() {
		out = append(out, cur.Entity())
	}
	return out
}

// VerifySnapshot rebuilds a hash tree from scratch over the current head
// store and asserts its root hash equals the incrementally maintained
// one, independent of the sequence of operations that produced it.
func (r *Repository) VerifySnapshot() error {
	_, rebuilt, err := hashtree.Build(r.entities())
	if err != nil {
		return fmt.Errorf("repo: verify snapshot: %w", err)
	}
	if !rebuilt.Equal(r.RootHash()) {
		return fmt.Errorf("%w: rebuilt vs incremental", ErrHashMismatch)
	}
	return nil
}
