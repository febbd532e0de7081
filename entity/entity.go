// Package entity defines the typed record identity and serialization
// registry: a type name (string) is associated with a factory at process
// start, and serialization stores the name so FromMap can resolve it
// back. Type dispatch is a name -> constructor map rather than a switch
// over concrete Go types, since the set of registered types is open.
package entity

import (
	"errors"
	"fmt"
)

// MaxDepth is the maximum nesting depth of a payload value: a plain
// scalar is depth 1, a map of scalars is depth 2, and so on. Exceeding
// this is a hard error.
const MaxDepth = 3

var (
	// ErrImmutableID is returned when code attempts to change an entity's id.
	ErrImmutableID = errors.New("entity: id is immutable")
	// ErrUnknownType is returned when a type name has no registered factory.
	ErrUnknownType = errors.New("entity: unknown type")
	// ErrDepthExceeded is returned when a payload nests deeper than MaxDepth.
	ErrDepthExceeded = errors.New("entity: payload exceeds max depth")
	// ErrInvalidTypeName is returned when a type name is not a non-empty string.
	ErrInvalidTypeName = errors.New("entity: type name must be a non-empty string")
)

// TypeNameField is the reserved payload key under which the registered
// type name is stored when an entity is serialized.
const TypeNameField = "__type__"

// IDField and ParentIDField are the reserved payload keys for an entity's
// identity and parent relation.
const (
	IDField       = "id"
	ParentIDField = "parentId"
)

// Value is a scalar or a nested map of depth <= entity.MaxDepth.
type Value = any

// Entity is a record with an immutable id, a possibly-empty parent id, a
// registered type name, and an opaque payload. The id of a live entity
// never changes; any apparent "rename" is a delete+create pair at the
// Delta layer.
type Entity struct {
	ID       string
	ParentID string
	Type     string
	Fields   map[string]Value
}

// Clone returns a deep copy of the entity. The Entity Store never returns
// a live reference; every read is a Clone.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{
		ID:       e.ID,
		ParentID: e.ParentID,
		Type:     e.Type,
		Fields:   cloneValue(e.Fields).(map[string]Value),
	}
}

func cloneValue(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, v := range t {
			out[k] = cloneValue(v)
		}
		return out
	case []Value:
		out := make([]Value, len(t))
		for i, v := range t {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return v
	}
}

// ToMap serializes the entity into a flat map, injecting id, parentId
// and the registered type name field. This is the canonical "dump" form
// consumed by Delta.CREATE/DELETE and by the hash tree's per-entity hash.
func (e *Entity) ToMap() map[string]Value {
	out := make(map[string]Value, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = cloneValue(v)
	}
	out[IDField] = e.ID
	out[ParentIDField] = e.ParentID
	out[TypeNameField] = e.Type
	return out
}

// FromMap reconstructs an Entity from its serialized map form. It is the
// caller's responsibility to ensure the type name is registered if
// strict type validation is required; FromMap itself does not consult
// the Registry, it only splits out the reserved fields.
func FromMap(data map[string]Value) (*Entity, error) {
	typeName, _ := data[TypeNameField].(string)
	if typeName == "" {
		return nil, ErrInvalidTypeName
	}
	id, _ := data[IDField].(string)
	parentID, _ := data[ParentIDField].(string)
	fields := make(map[string]Value, len(data))
	for k, v := range data {
		switch k {
		case IDField, ParentIDField, TypeNameField:
			continue
		default:
			fields[k] = cloneValue(v)
		}
	}
	e := &Entity{ID: id, ParentID: parentID, Type: typeName, Fields: fields}
	if err := ValidateDepth(e.ToMap(), 0); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateDepth walks value recursively and returns ErrDepthExceeded if
// any nested map/list exceeds entity.MaxDepth levels from the root.
func ValidateDepth(value Value, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: depth %d", ErrDepthExceeded, depth)
	}
	switch t := value.(type) {
	case map[string]Value:
		for _, v := range t {
			if err := ValidateDepth(v, depth+1); err != nil {
				return err
			}
		}
	case []Value:
		for _, v := range t {
			if err := ValidateDepth(v, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeepEqual compares two values field-by-field up to entity.MaxDepth,
// erroring rather than silently truncating when the cap is exceeded.
func DeepEqual(a, b Value, depth int) (bool, error) {
	if depth > MaxDepth {
		return false, fmt.Errorf("%w: depth %d", ErrDepthExceeded, depth)
	}
	switch at := a.(type) {
	case map[string]Value:
		bt, ok := b.(map[string]Value)
		if !ok || len(at) != len(bt) {
			return false, nil
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok {
				return false, nil
			}
			eq, err := DeepEqual(av, bv, depth+1)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case []Value:
		bt, ok := b.([]Value)
		if !ok || len(at) != len(bt) {
			return false, nil
		}
		for i := range at {
			eq, err := DeepEqual(at[i], bt[i], depth+1)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	default:
		return a == b, nil
	}
}
