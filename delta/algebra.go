package delta

import (
	"errors"
	"fmt"

	"github.com/foliavcs/folia/entity"
)

// ErrIrrational is returned when two Changes for the same entity cannot
// be combined under the merge table below (e.g. DELETE followed by
// UPDATE, which would require updating a non-existent entity).
var ErrIrrational = errors.New("delta: irrational change sequence")

// Merge combines first (applied earlier) and next (applied later) into a
// single equivalent Change. The two Changes must target the same entity.
func Merge(first, next Change) (Change, error) {
	fk, nk := first.KindOf(), next.KindOf()
	id := first.EntityID
	if next.EntityID != "" {
		id = next.EntityID
	}

	switch nk {
	case Empty:
		return first, nil
	}
	switch fk {
	case Empty:
		return next, nil
	}

	switch fk {
	case Create:
		switch nk {
		case Create:
			return Change{}, fmt.Errorf("%w: CREATE after CREATE for %s", ErrIrrational, id)
		case Update:
			forward := cloneFields(first.Forward)
			for k, v := range next.Forward {
				forward[k] = v
			}
			return Change{EntityID: id, Forward: forward}, nil
		case Delete:
			// net effect: entity created then destroyed within the span of this delta.
			return Change{EntityID: id}, nil
		}

	case Update:
		switch nk {
		case Create:
			return Change{}, fmt.Errorf("%w: CREATE after UPDATE for %s", ErrIrrational, id)
		case Update:
			forward := cloneFields(first.Forward)
			for k, v := range next.Forward {
				forward[k] = v
			}
			reverse := cloneFields(next.Reverse)
			for k, v := range first.Reverse {
				reverse[k] = v
			}
			// a key that ends at the value it started from is no change.
			for k, fv := range forward {
				rv, ok := reverse[k]
				if !ok {
					continue
				}
				eq, err := entity.DeepEqual(rv, fv, 0)
				if err != nil {
					return Change{}, err
				}
				if eq {
					delete(forward, k)
					delete(reverse, k)
				}
			}
			return Change{EntityID: id, Reverse: reverse, Forward: forward}, nil
		case Delete:
			// next.Reverse already holds the full entity as of just before next
			// (i.e. just after first); overlay first's reverse on top of it so
			// the keys first touched revert further, back past first, while
			// every other field stays at its full pre-first value.
			reverse := cloneFields(next.Reverse)
			for k, v := range first.Reverse {
				reverse[k] = v
			}
			return Change{EntityID: id, Reverse: reverse}, nil
		}

	case Delete:
		switch nk {
		case Create:
			return Change{EntityID: id, Reverse: cloneFields(first.Reverse), Forward: cloneFields(next.Forward)}, nil
		case Update, Delete:
			return Change{}, fmt.Errorf("%w: %s after DELETE for %s", ErrIrrational, nk, id)
		}
	}
	return Change{}, fmt.Errorf("%w: unhandled %s after %s for %s", ErrIrrational, nk, fk, id)
}
