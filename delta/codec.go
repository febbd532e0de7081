package delta

import (
	"encoding/json"
	"fmt"

	"github.com/foliavcs/folia/entity"
)

// wireChange is the JSON wire form of a Change, keeping EntityID explicit
// alongside a Delta's own ordered change list so it survives a decode
// that only has the flat list, not the original map.
type wireChange struct {
	EntityID string                  `json:"entityId"`
	Reverse  map[string]entity.Value `json:"reverse,omitempty"`
	Forward  map[string]entity.Value `json:"forward,omitempty"`
}

// Marshal encodes d as opaque bytes suitable for storage as a commit's
// delta payload.
func Marshal(d *Delta) ([]byte, error) {
	changes := d.Changes()
	wire := make([]wireChange, 0, len(changes))
	for _, c := range changes {
		wire = append(wire, wireChange{EntityID: c.EntityID, Reverse: c.Reverse, Forward: c.Forward})
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("delta: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes bytes produced by Marshal back into a Delta,
// preserving change order and re-validating the merge sequence.
func Unmarshal(data []byte) (*Delta, error) {
	var wire []wireChange
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("delta: unmarshal: %w", err)
	}
	changes := make([]Change, 0, len(wire))
	for _, w := range wire {
		changes = append(changes, Change{EntityID: w.EntityID, Reverse: w.Reverse, Forward: w.Forward})
	}
	return FromChanges(changes)
}
