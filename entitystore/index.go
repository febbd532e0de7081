// Package entitystore implements an indexed store of entities:
// insert/update/remove, a generator-style find, pluggable multi-field
// indexes, and a selectivity-based query planner that picks among them.
package entitystore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/foliavcs/folia/entity"
)

// ErrNoIndexes is returned when a Store is constructed with no index
// configurations; at least one is required (typically a unique "id" index).
var ErrNoIndexes = errors.New("entitystore: at least one index must be configured")

// TypeField is the synthetic field name matched against allowedTypes in
// an IndexConfig.
const TypeField = entity.TypeNameField

// FieldSpec names one component of an index key: either a regular entity
// property, or the synthetic TypeField constrained to AllowedTypes.
type FieldSpec struct {
	Name         string
	AllowedTypes []string
}

// IndexConfig describes one index: a name, an ordered list of fields
// whose values are joined with '|' to form the index key, and a
// uniqueness flag.
type IndexConfig struct {
	Name   string
	Fields []FieldSpec
	Unique bool
}

type index struct {
	config  IndexConfig
	buckets map[string][]string // key -> entity ids, insertion order
}

func newIndex(cfg IndexConfig) *index {
	return &index{config: cfg, buckets: make(map[string][]string)}
}

// keyFor returns the join key for e under this index's field list, and
// false if any field is not defined on e (the entity is not indexed by
// this config at all).
func (ix *index) keyFor(e *entity.Entity) (string, bool) {
	parts := make([]string, len(ix.config.Fields))
	for i, f := range ix.config.Fields {
		v, ok := fieldValue(e, f)
		if !ok {
			return "", false
		}
		parts[i] = toKeyPart(v)
	}
	return strings.Join(parts, "|"), true
}

func fieldValue(e *entity.Entity, f FieldSpec) (entity.Value, bool) {
	if f.Name == TypeField {
		for _, t := range f.AllowedTypes {
			if e.Type == t {
				return t, true
			}
		}
		return nil, false
	}
	switch f.Name {
	case entity.IDField:
		return e.ID, true
	case entity.ParentIDField:
		return e.ParentID, true
	default:
		v, ok := e.Fields[f.Name]
		return v, ok
	}
}

func toKeyPart(v entity.Value) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return toStableString(t)
	}
}

// toStableString renders non-string scalars deterministically for use as
// part of an index key.
func toStableString(v entity.Value) string {
	if v == nil {
		return "\x00nil"
	}
	return fmt.Sprintf("%v", v)
}

// insert adds e's id under this index's bucket, if the entity qualifies.
func (ix *index) insert(e *entity.Entity) {
	key, ok := ix.keyFor(e)
	if !ok {
		return
	}
	ix.buckets[key] = append(ix.buckets[key], e.ID)
}

// remove deletes id from whichever bucket it was last known to occupy.
func (ix *index) remove(e *entity.Entity) {
	key, ok := ix.keyFor(e)
	if !ok {
		return
	}
	ids := ix.buckets[key]
	for i, id := range ids {
		if id == e.ID {
			ix.buckets[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ix.buckets[key]) == 0 {
		delete(ix.buckets, key)
	}
}

// selectivity returns the bucket size for filter's projection onto this
// index's fields, and false if the filter does not cover every field the
// index needs.
func (ix *index) selectivity(filter map[string]entity.Value) (int, bool) {
	parts := make([]string, len(ix.config.Fields))
	for i, f := range ix.config.Fields {
		v, ok := filterValue(filter, f)
		if !ok {
			return 0, false
		}
		parts[i] = toKeyPart(v)
	}
	key := strings.Join(parts, "|")
	return len(ix.buckets[key]), true
}

func filterValue(filter map[string]entity.Value, f FieldSpec) (entity.Value, bool) {
	if f.Name == TypeField {
		tv, ok := filter[TypeField]
		if !ok {
			return nil, false
		}
		typeName, _ := tv.(string)
		for _, t := range f.AllowedTypes {
			if t == typeName {
				return t, true
			}
		}
		return nil, false
	}
	v, ok := filter[f.Name]
	return v, ok
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
