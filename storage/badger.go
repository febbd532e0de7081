package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/foliavcs/folia/vcs"
)

// BadgerConfig configures a BadgerAdapter. Mirrors the shape of a typical
// embedded-database config: a path, an in-memory escape hatch for tests,
// a durability knob, and optional background GC.
type BadgerConfig struct {
	Path           string        `yaml:"path"`
	InMemory       bool          `yaml:"inMemory"`
	SyncWrites     bool          `yaml:"syncWrites"`
	Logger         *slog.Logger  `yaml:"-"`
	GCInterval     time.Duration `yaml:"gcInterval"`
	GCDiscardRatio float64       `yaml:"gcDiscardRatio"`
}

// DefaultBadgerConfig returns production defaults: durable writes and
// periodic value-log GC.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a config suited to tests: no disk I/O, no GC.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:   true,
		SyncWrites: false,
	}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

const (
	commitPrefix = "commit:"
	branchPrefix = "branch:"
)

// BadgerAdapter is the embedded-database Adapter: every commit and branch
// lives as a key in a single BadgerDB instance, so the store survives
// process restarts without any in-memory cache of its own.
type BadgerAdapter struct {
	mu       sync.Mutex
	db       *badger.DB
	gcCancel chan struct{}
	gcDone   chan struct{}
	logger   *slog.Logger
}

// OpenBadgerAdapter opens (creating if necessary) a BadgerDB-backed adapter.
func OpenBadgerAdapter(cfg BadgerConfig) (*BadgerAdapter, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage: badger: path is required for a persistent adapter")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("storage: badger: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: badger: open: %w", err)
	}

	a := &BadgerAdapter{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		a.gcCancel = make(chan struct{})
		a.gcDone = make(chan struct{})
		go a.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return a, nil
}

func (a *BadgerAdapter) runGC(interval time.Duration, ratio float64) {
	defer close(a.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.gcCancel:
			return
		case <-ticker.C:
			if err := a.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				a.logger.Warn("badger value log gc failed", "error", err)
			}
		}
	}
}

func commitKey(id string) []byte   { return []byte(commitPrefix + id) }
func branchKey(name string) []byte { return []byte(branchPrefix + name) }

// GetCommitGraph reconstructs the full graph by scanning both key prefixes.
func (a *BadgerAdapter) GetCommitGraph(ctx context.Context) (*vcs.Graph, error) {
	graph := vcs.NewGraph()
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			switch {
			case strings.HasPrefix(key, commitPrefix):
				var c vcs.Commit
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
					return err
				}
				graph.PutCommit(c)
			case strings.HasPrefix(key, branchPrefix):
				var b vcs.Branch
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &b) }); err != nil {
					return err
				}
				graph.AddBranch(b.Name)
				if b.HeadCommitID != "" {
					if err := graph.SetBranchHead(b.Name, b.HeadCommitID); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: badger: scan: %w", err)
	}
	return graph, nil
}

// GetCommits fetches the named commits by key, failing if any is absent.
func (a *BadgerAdapter) GetCommits(ctx context.Context, ids []string) ([]vcs.Commit, error) {
	out := make([]vcs.Commit, 0, len(ids))
	err := a.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(commitKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: %s", vcs.ErrUnknownCommit, id)
				}
				return err
			}
			var c vcs.Commit
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyUpdate writes every change in update as a single Badger transaction.
func (a *BadgerAdapter) ApplyUpdate(ctx context.Context, update InternalRepoUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Update(func(txn *badger.Txn) error {
		for _, meta := range update.RemovedCommits {
			if err := txn.Delete(commitKey(meta.ID)); err != nil {
				return err
			}
		}
		for _, c := range update.AddedCommits {
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := txn.Set(commitKey(c.ID), data); err != nil {
				return err
			}
		}
		for _, name := range update.RemovedBranches {
			if err := txn.Delete(branchKey(name)); err != nil {
				return err
			}
		}
		for _, b := range append(append([]vcs.Branch{}, update.AddedBranches...), update.UpdatedBranches...) {
			data, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if err := txn.Set(branchKey(b.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops the GC runner (if any) and closes the database.
func (a *BadgerAdapter) Close() error {
	if a.gcCancel != nil {
		close(a.gcCancel)
		<-a.gcDone
	}
	return a.db.Close()
}

// EraseStorage drops every key, returning the database to an empty graph.
func (a *BadgerAdapter) EraseStorage(ctx context.Context) error {
	return a.db.DropAll()
}
