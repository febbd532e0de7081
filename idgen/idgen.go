// Package idgen generates the random identifiers used for commits,
// entities, and other ephemeral ids, plus UUID-backed replica/device
// identifiers that must be globally unique across devices.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces short random ids. The zero value uses crypto/rand;
// NewDeterministic returns a Generator suitable for reproducible tests.
type Generator struct {
	next func() (string, error)
}

// New returns a Generator backed by crypto/rand, producing 8-character
// lowercase alphanumeric ids.
func New() *Generator {
	return &Generator{next: randomID}
}

// NewDeterministic returns a Generator that yields "id-0", "id-1", ...
// in sequence, for tests that need reproducible commit/entity ids.
func NewDeterministic() *Generator {
	n := 0
	return &Generator{next: func() (string, error) {
		id := fmt.Sprintf("id-%d", n)
		n++
		return id, nil
	}}
}

// ID returns the next generated id.
func (g *Generator) ID() (string, error) {
	if g.next == nil {
		return randomID()
	}
	return g.next()
}

func randomID() (string, error) {
	const length = 8
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// NewReplicaID returns a fresh replica/device identifier.
func NewReplicaID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("idgen: replica id: %w", err)
	}
	return id.String(), nil
}
