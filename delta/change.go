// Package delta implements the Change/Delta algebra: per-entity
// reverse+forward field maps, merge-with-priority, inversion, and
// squish. A Change pairs the field values an entity had before a
// mutation with the values it has after, so that any sequence of
// mutations can be collapsed into one equivalent Change and undone.
package delta

import "github.com/foliavcs/folia/entity"

// Kind classifies a Change by the non-emptiness of its two field maps.
type Kind int

const (
	// Empty changes nothing.
	Empty Kind = iota
	// Create is a reverse-empty, forward-full Change: a new entity.
	Create
	// Update changes only the fields that actually changed.
	Update
	// Delete is a forward-empty, reverse-full Change: entity removal.
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "CREATE"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "EMPTY"
	}
}

// Change is the triple (entityId, reverseFields, forwardFields).
type Change struct {
	EntityID string
	Reverse  map[string]entity.Value
	Forward  map[string]entity.Value
}

// KindOf classifies c by which of its two field maps are non-empty.
func (c Change) KindOf() Kind {
	switch {
	case len(c.Reverse) == 0 && len(c.Forward) == 0:
		return Empty
	case len(c.Reverse) == 0:
		return Create
	case len(c.Forward) == 0:
		return Delete
	default:
		return Update
	}
}

// Reversed swaps reverse and forward, implementing Change inversion.
func (c Change) Reversed() Change {
	return Change{EntityID: c.EntityID, Reverse: c.Forward, Forward: c.Reverse}
}

func cloneFields(m map[string]entity.Value) map[string]entity.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]entity.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewCreate builds a CREATE Change for an entity whose full serialized
// form is data.
func NewCreate(entityID string, data map[string]entity.Value) Change {
	return Change{EntityID: entityID, Forward: cloneFields(data)}
}

// NewDelete builds a DELETE Change for an entity whose full serialized
// form (as it existed just before removal) is data.
func NewDelete(entityID string, data map[string]entity.Value) Change {
	return Change{EntityID: entityID, Reverse: cloneFields(data)}
}

// NewUpdate builds an UPDATE Change from the fields that changed: before
// holds only the pre-change values of those fields, after only the
// post-change values. An UPDATE with no changed fields collapses to Empty.
func NewUpdate(entityID string, before, after map[string]entity.Value) Change {
	if len(before) == 0 && len(after) == 0 {
		return Change{EntityID: entityID}
	}
	return Change{EntityID: entityID, Reverse: cloneFields(before), Forward: cloneFields(after)}
}

// ChangedFields computes the UPDATE Change between the full prior and
// next serialized forms of an entity, comparing each field to depth
// entity.MaxDepth. Fields identical are omitted from both maps.
func ChangedFields(entityID string, prior, next map[string]entity.Value) (Change, error) {
	before := make(map[string]entity.Value)
	after := make(map[string]entity.Value)
	seen := make(map[string]struct{}, len(prior)+len(next))
	for k := range prior {
		seen[k] = struct{}{}
	}
	for k := range next {
		seen[k] = struct{}{}
	}
	for k := range seen {
		pv, pOk := prior[k]
		nv, nOk := next[k]
		if pOk && nOk {
			eq, err := entity.DeepEqual(pv, nv, 0)
			if err != nil {
				return Change{}, err
			}
			if eq {
				continue
			}
		}
		if pOk {
			before[k] = pv
		}
		if nOk {
			after[k] = nv
		}
	}
	return NewUpdate(entityID, before, after), nil
}
