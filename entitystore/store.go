package entitystore

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
)

var (
	// ErrDuplicateID is returned by InsertOne when the id is already present.
	ErrDuplicateID = errors.New("entitystore: duplicate id")
	// ErrNotFound is returned when an operation targets a missing entity.
	ErrNotFound = errors.New("entitystore: entity not found")
	// ErrNoIDIndex is returned when no configured index can resolve by id
	// alone, which the full-scan fallback requires.
	ErrNoIDIndex = errors.New("entitystore: no id index configured")
)

// idIndexFields is the canonical field list for the required id index.
var idIndexFields = []FieldSpec{{Name: entity.IDField}}

// Store is the indexed entity store. All reads return deep copies; the
// only way to observe a mutation is through InsertOne, UpdateOne,
// RemoveOne or ApplyDelta.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entity.Entity
	indexes  []*index
	idIndex  *index
	planner  planner
}

// New constructs a Store with the given index configurations. At least
// one config must be supplied, and at least one must resolve entities by
// id alone (the full-scan fallback depends on it).
func New(configs []IndexConfig) (*Store, error) {
	if len(configs) == 0 {
		return nil, ErrNoIndexes
	}
	s := &Store{entities: make(map[string]*entity.Entity)}
	for _, cfg := range configs {
		ix := newIndex(cfg)
		s.indexes = append(s.indexes, ix)
		if isIDIndex(cfg) {
			s.idIndex = ix
		}
	}
	if s.idIndex == nil {
		return nil, ErrNoIDIndex
	}
	s.planner = planner{indexes: s.indexes}
	return s, nil
}

func isIDIndex(cfg IndexConfig) bool {
	return len(cfg.Fields) == 1 && cfg.Fields[0].Name == entity.IDField
}

// InsertOne adds a new entity to every applicable index and returns the
// CREATE Change describing it. Fails with ErrDuplicateID if the id is
// already present.
func (s *Store) InsertOne(e *entity.Entity) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.ID]; ok {
		return delta.Change{}, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	clone := e.Clone()
	s.entities[clone.ID] = clone
	for _, ix := range s.indexes {
		ix.insert(clone)
	}
	return delta.NewCreate(clone.ID, clone.ToMap()), nil
}

// UpdateOne replaces the entity with id with next (next.ID must equal
// id; changing it is an immutable-id violation). Only indexes whose
// fields intersect the changed-field set are re-keyed; others have their
// stored reference swapped in place. Returns the UPDATE Change.
func (s *Store) UpdateOne(id string, next *entity.Entity) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entities[id]
	if !ok {
		return delta.Change{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if next.ID != id {
		return delta.Change{}, fmt.Errorf("%w: %s -> %s", entity.ErrImmutableID, id, next.ID)
	}
	change, err := delta.ChangedFields(id, current.ToMap(), next.ToMap())
	if err != nil {
		return delta.Change{}, err
	}
	if change.KindOf() == delta.Empty {
		return change, nil
	}
	clone := next.Clone()
	changedFields := fieldSet(change.Forward)
	for _, ix := range s.indexes {
		if indexAffectedBy(ix.config, changedFields) {
			ix.remove(current)
			ix.insert(clone)
		}
	}
	s.entities[id] = clone
	return change, nil
}

func fieldSet(forward map[string]entity.Value) map[string]struct{} {
	out := make(map[string]struct{}, len(forward))
	for k := range forward {
		out[k] = struct{}{}
	}
	return out
}

func indexAffectedBy(cfg IndexConfig, changed map[string]struct{}) bool {
	for _, f := range cfg.Fields {
		name := f.Name
		if name == TypeField {
			name = entity.TypeNameField
		}
		if _, ok := changed[name]; ok {
			return true
		}
	}
	return false
}

// RemoveOne deletes the entity with id from every index it is currently
// in and returns the DELETE Change.
func (s *Store) RemoveOne(id string) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entities[id]
	if !ok {
		return delta.Change{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, ix := range s.indexes {
		ix.remove(current)
	}
	delete(s.entities, id)
	return delta.NewDelete(id, current.ToMap()), nil
}

// ApplyDelta materializes each Change in d against current store state,
// in order: CREATE rehydrates from Forward and calls InsertOne; UPDATE
// re-reads the current entity, applies Forward on top, and calls
// UpdateOne; DELETE looks up by id and calls RemoveOne.
func (s *Store) ApplyDelta(d *delta.Delta) error {
	for _, c := range d.Changes() {
		switch c.KindOf() {
		case delta.Create:
			e, err := entity.FromMap(c.Forward)
			if err != nil {
				return err
			}
			if e.ID == "" {
				e.ID = c.EntityID
			}
			if _, err := s.InsertOne(e); err != nil {
				return err
			}
		case delta.Update:
			current, err := s.FindOne(Filter{entity.IDField: c.EntityID})
			if err != nil {
				return err
			}
			next := current.Clone()
			applyForward(next, c.Forward)
			if _, err := s.UpdateOne(c.EntityID, next); err != nil {
				return err
			}
		case delta.Delete:
			if _, err := s.RemoveOne(c.EntityID); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyForward(e *entity.Entity, forward map[string]entity.Value) {
	for k, v := range forward {
		switch k {
		case entity.IDField:
			// immutable; ignored even if present in a malformed delta.
		case entity.ParentIDField:
			if s, ok := v.(string); ok {
				e.ParentID = s
			}
		case entity.TypeNameField:
			if s, ok := v.(string); ok {
				e.Type = s
			}
		default:
			e.Fields[k] = v
		}
	}
}

// Filter is an equality filter: every key must match the corresponding
// entity field (or the reserved id/parentId/__type__ fields).
type Filter map[string]entity.Value

// FindOne returns a single deep copy matching filter, or ErrNotFound.
func (s *Store) FindOne(filter Filter) (*entity.Entity, error) {
	cur := s.Find(filter)
	defer cur.Close()
	if !cur.Next() {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, filter)
	}
	return cur.Entity(), nil
}

// Find returns a lazy Cursor over every live entity matching filter. The
// planner selects the lowest-selectivity index whose fields are all
// covered by filter, else falls back to a full scan over the id index;
// remaining filter fields are then applied by equality over the
// candidate entities.
func (s *Store) Find(filter Filter) *Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asMap := map[string]entity.Value(filter)
	ix, ok := s.planner.plan(asMap)
	var ids []string
	if ok {
		ids = collectIDs(ix, asMap)
	} else {
		ids = sortedKeys(s.idIndex.buckets)
		flat := make([]string, 0, len(ids))
		for _, k := range ids {
			flat = append(flat, s.idIndex.buckets[k]...)
		}
		ids = flat
	}
	return &Cursor{store: s, ids: ids, filter: asMap}
}

func collectIDs(ix *index, filter map[string]entity.Value) []string {
	parts := make([]string, len(ix.config.Fields))
	for i, f := range ix.config.Fields {
		v, _ := filterValue(filter, f)
		parts[i] = toKeyPart(v)
	}
	key := strings.Join(parts, "|")
	ids := ix.buckets[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Cursor is a generator-style iterator over Find results; it yields deep
// copies lazily rather than materializing the whole result set.
type Cursor struct {
	store   *Store
	ids     []string
	filter  map[string]entity.Value
	current *entity.Entity
}

// Next advances the cursor, returning false once exhausted.
func (c *Cursor) Next() bool {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	for len(c.ids) > 0 {
		id := c.ids[0]
		c.ids = c.ids[1:]
		e, ok := c.store.entities[id]
		if !ok {
			continue
		}
		if matches(e, c.filter) {
			c.current = e.Clone()
			return true
		}
	}
	c.current = nil
	return false
}

// Entity returns the entity at the cursor's current position.
func (c *Cursor) Entity() *entity.Entity {
	return c.current
}

// Close releases cursor resources. Find's result set is fully in memory
// as an id list, so Close is a no-op kept for symmetry with storage-
// backed iterators.
func (c *Cursor) Close() {}

func matches(e *entity.Entity, filter map[string]entity.Value) bool {
	for k, want := range filter {
		var got entity.Value
		switch k {
		case entity.IDField:
			got = e.ID
		case entity.ParentIDField:
			got = e.ParentID
		case entity.TypeNameField:
			got = e.Type
		default:
			var ok bool
			got, ok = e.Fields[k]
			if !ok {
				return false
			}
		}
		eq, err := entity.DeepEqual(got, want, 0)
		if err != nil || !eq {
			return false
		}
	}
	return true
}
