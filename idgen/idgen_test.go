package idgen_test

import (
	"testing"

	"github.com/foliavcs/folia/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesDistinctIDs(t *testing.T) {
	g := idgen.New()
	a, err := g.ID()
	require.NoError(t, err)
	b, err := g.ID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 8)
}

func TestDeterministicIsReproducible(t *testing.T) {
	g := idgen.NewDeterministic()
	first, _ := g.ID()
	second, _ := g.ID()
	assert.Equal(t, "id-0", first)
	assert.Equal(t, "id-1", second)
}

func TestNewReplicaIDIsUnique(t *testing.T) {
	a, err := idgen.NewReplicaID()
	require.NoError(t, err)
	b, err := idgen.NewReplicaID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
