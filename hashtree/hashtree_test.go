package hashtree_test

import (
	"encoding/json"
	"testing"

	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/hashtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageEntity(id, parentID, name string) *entity.Entity {
	return &entity.Entity{ID: id, ParentID: parentID, Type: "Page", Fields: map[string]entity.Value{"name": name}}
}

func TestInsertChangesRootHash(t *testing.T) {
	tree := hashtree.New()
	h0, err := tree.UpdateRootHash()
	require.NoError(t, err)

	require.NoError(t, tree.Insert(pageEntity("p1", "", "Test Page")))
	h1, err := tree.UpdateRootHash()
	require.NoError(t, err)
	assert.False(t, h0.Equal(h1))

	require.NoError(t, tree.Update(pageEntity("p1", "", "X")))
	h2, err := tree.UpdateRootHash()
	require.NoError(t, err)
	assert.False(t, h1.Equal(h2))

	require.NoError(t, tree.Remove("p1"))
	h3, err := tree.UpdateRootHash()
	require.NoError(t, err)
	assert.True(t, h0.Equal(h3), "removing the only entity should restore the empty-tree hash")
}

func TestOrphanSubtreeIsHardError(t *testing.T) {
	tree := hashtree.New()
	require.NoError(t, tree.Insert(pageEntity("child", "missing-parent", "c")))
	_, err := tree.UpdateRootHash()
	assert.ErrorIs(t, err, hashtree.ErrOrphanSubtree)
}

func TestStagedChildAttachesWhenParentArrives(t *testing.T) {
	tree := hashtree.New()
	require.NoError(t, tree.Insert(pageEntity("child", "parent", "c")))
	require.NoError(t, tree.Insert(pageEntity("parent", "", "p")))
	h, err := tree.UpdateRootHash()
	require.NoError(t, err)
	assert.False(t, h.IsZero())
}

func TestBuildFromScratchMatchesIncremental(t *testing.T) {
	tree := hashtree.New()
	require.NoError(t, tree.Insert(pageEntity("p1", "", "A")))
	require.NoError(t, tree.Insert(pageEntity("n1", "p1", "note")))
	incremental, err := tree.UpdateRootHash()
	require.NoError(t, err)

	_, built, err := hashtree.Build([]*entity.Entity{
		pageEntity("p1", "", "A"),
		pageEntity("n1", "p1", "note"),
	})
	require.NoError(t, err)
	assert.True(t, incremental.Equal(built))
}

func TestRemoveNonLeafIsErrorUntilChildRemoved(t *testing.T) {
	tree := hashtree.New()
	require.NoError(t, tree.Insert(pageEntity("p1", "", "A")))
	require.NoError(t, tree.Insert(pageEntity("n1", "p1", "note")))
	_, err := tree.UpdateRootHash()
	require.NoError(t, err)

	require.NoError(t, tree.Remove("p1"))
	_, err = tree.UpdateRootHash()
	assert.ErrorIs(t, err, hashtree.ErrNonLeafRemoval)

	require.NoError(t, tree.Remove("n1"))
	_, err = tree.UpdateRootHash()
	assert.NoError(t, err)
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := hashtree.CanonicalJSON(map[string]entity.Value{"b": 1, "a": 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(a))
}

func TestCanonicalJSONDepthExceeded(t *testing.T) {
	deep := map[string]entity.Value{
		"a": map[string]entity.Value{
			"b": map[string]entity.Value{
				"c": map[string]entity.Value{
					"d": "too deep",
				},
			},
		},
	}
	_, err := hashtree.CanonicalJSON(deep, 0)
	assert.ErrorIs(t, err, hashtree.ErrDepthExceeded)
}

func TestHashJSONRoundTrip(t *testing.T) {
	h, err := hashtree.Sum([]byte("hello"))
	require.NoError(t, err)

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var got hashtree.Hash
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, h.Equal(got))
}

func TestZeroHashJSONRoundTrip(t *testing.T) {
	var zero hashtree.Hash
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var got hashtree.Hash
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.IsZero())
}
