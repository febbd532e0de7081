package delta

// Delta is an ordered collection of Changes keyed by entity id, with at
// most one Change per entity. Order must be preserved because reversal
// emits Changes in reverse insertion order.
type Delta struct {
	order   []string
	changes map[string]Change
}

// New returns an empty Delta.
func New() *Delta {
	return &Delta{changes: make(map[string]Change)}
}

// Len returns the number of distinct entities touched by this delta.
func (d *Delta) Len() int {
	return len(d.order)
}

// Changes returns the Changes in insertion order. The returned slice is
// a copy; mutating it does not affect the Delta.
func (d *Delta) Changes() []Change {
	out := make([]Change, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.changes[id])
	}
	return out
}

// Get returns the Change for entityID, if any.
func (d *Delta) Get(entityID string) (Change, bool) {
	c, ok := d.changes[entityID]
	return c, ok
}

// set inserts or replaces the Change for c.EntityID, tracking first-seen
// order.
func (d *Delta) set(c Change) {
	if _, ok := d.changes[c.EntityID]; !ok {
		d.order = append(d.order, c.EntityID)
	}
	d.changes[c.EntityID] = c
}

// Add merges change into the delta against any existing Change for the
// same entity, using the algebra in algebra.go. This is the single
// mutation primitive; FromChanges and Squish are built on it.
func (d *Delta) Add(change Change) error {
	existing, ok := d.changes[change.EntityID]
	if !ok {
		d.set(change)
		return nil
	}
	merged, err := Merge(existing, change)
	if err != nil {
		return err
	}
	d.set(merged)
	return nil
}

// FromChanges builds a Delta by folding changes, in order, via Add.
func FromChanges(changes []Change) (*Delta, error) {
	d := New()
	for _, c := range changes {
		if err := d.Add(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Reversed inverts every Change (swap reverse/forward) and reverses the
// list order. d.Reversed().Reversed() produces a Delta equal in content
// and order to d.
func (d *Delta) Reversed() *Delta {
	out := New()
	for i := len(d.order) - 1; i >= 0; i-- {
		id := d.order[i]
		out.set(d.changes[id].Reversed())
	}
	return out
}

// Squish left-folds a sequence of Deltas into one equivalent Delta via
// the Delta algebra, applying each Delta's Changes in that Delta's
// insertion order, deltas in slice order.
func Squish(deltas []*Delta) (*Delta, error) {
	out := New()
	for _, d := range deltas {
		if d == nil {
			continue
		}
		for _, c := range d.Changes() {
			if err := out.Add(c); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
