package entitystore

import "github.com/foliavcs/folia/entity"

// planner selects, for a given filter, the configured index with the
// lowest estimated selectivity whose fields are all covered by the
// filter. Ties are broken by index declaration order, which keeps
// selection deterministic regardless of which index ends up chosen.
type planner struct {
	indexes []*index
}

// plan returns the chosen index and the key to probe, or nil if no
// index's fields are fully covered by filter (caller should fall back to
// a full scan over the id index).
func (p *planner) plan(filter map[string]entity.Value) (*index, bool) {
	var best *index
	bestSelectivity := -1
	for _, ix := range p.indexes {
		n, ok := ix.selectivity(filter)
		if !ok {
			continue
		}
		if best == nil || n < bestSelectivity {
			best = ix
			bestSelectivity = n
		}
	}
	return best, best != nil
}
