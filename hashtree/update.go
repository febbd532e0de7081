package hashtree

import (
	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/entitystore"
)

// entityLoader resolves the current form of an entity by id, used to
// rehash CREATE/UPDATE changes. entitystore.Store satisfies this via its
// FindOne method.
type entityLoader interface {
	FindOne(filter entitystore.Filter) (*entity.Entity, error)
}

// ApplyDelta walks d's Changes against store (which must already reflect
// the post-delta state) and applies the corresponding Insert/Update/
// Remove to t, then recomputes and returns the new root hash.
func ApplyDelta(t *Tree, store entityLoader, d *delta.Delta) (Hash, error) {
	for _, c := range d.Changes() {
		switch c.KindOf() {
		case delta.Create:
			e, err := entity.FromMap(c.Forward)
			if err != nil {
				return Hash{}, err
			}
			if e.ID == "" {
				e.ID = c.EntityID
			}
			if err := t.Insert(e); err != nil {
				return Hash{}, err
			}
		case delta.Update:
			e, err := store.FindOne(entitystore.Filter{entity.IDField: c.EntityID})
			if err != nil {
				return Hash{}, err
			}
			if err := t.Update(e); err != nil {
				return Hash{}, err
			}
		case delta.Delete:
			if err := t.Remove(c.EntityID); err != nil {
				return Hash{}, err
			}
		}
	}
	return t.UpdateRootHash()
}

// Build constructs a fresh Tree from every entity a full-scan iterator
// yields, used to re-derive a snapshot hash from scratch (e.g. for
// integrity verification against an incrementally maintained tree).
func Build(entities []*entity.Entity) (*Tree, Hash, error) {
	t := New()
	for _, e := range entities {
		if err := t.Insert(e); err != nil {
			return nil, Hash{}, err
		}
	}
	h, err := t.UpdateRootHash()
	if err != nil {
		return nil, Hash{}, err
	}
	return t, h, nil
}
