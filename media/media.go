// Package media implements the companion blob store: content-addressed
// media attached to entities by parent id, independent of the entity
// store's own content-addressing (the hash tree never folds media in).
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/foliavcs/folia/idgen"
)

const hashLength = 32 // truncated hex SHA-256, i.e. the first 16 digest bytes

var (
	ErrNotFound     = errors.New("media: not found")
	ErrHashMismatch = errors.New("media: content hash mismatch")
)

// Item describes one stored blob.
type Item struct {
	ID          string
	ParentID    string
	Path        string
	ContentHash string
	Size        int64
	Trashed     bool
}

// Store holds blobs in memory, keyed by item id. A production deployment
// would back this with a filesystem or object store; the contract (ids,
// paths, hashes, trash lifecycle) is what matters to the engine.
type Store struct {
	mu    sync.Mutex
	ids   *idgen.Generator
	items map[string]*Item
	blobs map[string][]byte
	paths map[string]bool // paths currently in use by non-trashed items
}

// New returns an empty Store using a random id generator.
func New() *Store {
	return &Store{
		ids:   idgen.New(),
		items: make(map[string]*Item),
		blobs: make(map[string][]byte),
		paths: make(map[string]bool),
	}
}

// ContentHash returns the truncated-SHA-256 content address of blob.
func ContentHash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])[:hashLength]
}

// AddMedia stores blob under a path derived from the requested path
// (disambiguated with a "_n" suffix before the extension if it collides
// with an existing, non-trashed item), parented to parentID.
func (s *Store) AddMedia(blob []byte, path, parentID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.ID()
	if err != nil {
		return Item{}, fmt.Errorf("media: add: %w", err)
	}
	resolved := s.resolvePath(path)
	item := &Item{
		ID:          id,
		ParentID:    parentID,
		Path:        resolved,
		ContentHash: ContentHash(blob),
		Size:        int64(len(blob)),
	}
	s.items[id] = item
	s.blobs[id] = append([]byte(nil), blob...)
	s.paths[resolved] = true
	return *item, nil
}

// resolvePath appends "_n" before the extension until path is unique.
// Caller must hold s.mu.
func (s *Store) resolvePath(path string) string {
	if !s.paths[path] {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !s.paths[candidate] {
			return candidate
		}
	}
}

// GetMedia returns the blob for id, verifying it against contentHash.
func (s *Store) GetMedia(id, contentHash string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if item.ContentHash != contentHash {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, id)
	}
	return append([]byte(nil), s.blobs[id]...), nil
}

// RemoveMedia permanently deletes id's blob and metadata.
func (s *Store) RemoveMedia(id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if item.ContentHash != hash {
		return fmt.Errorf("%w: %s", ErrHashMismatch, id)
	}
	delete(s.items, id)
	delete(s.blobs, id)
	delete(s.paths, item.Path)
	return nil
}

// MoveMediaToTrash marks id as trashed without deleting its blob, freeing
// its path for reuse by a later AddMedia.
func (s *Store) MoveMediaToTrash(id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if item.ContentHash != hash {
		return fmt.Errorf("%w: %s", ErrHashMismatch, id)
	}
	item.Trashed = true
	delete(s.paths, item.Path)
	return nil
}

// CleanTrash permanently deletes every trashed item's blob and metadata,
// returning the count removed.
func (s *Store) CleanTrash() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, item := range s.items {
		if !item.Trashed {
			continue
		}
		delete(s.items, id)
		delete(s.blobs, id)
		n++
	}
	return n
}
