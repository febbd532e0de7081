package entity_test

import (
	"testing"

	"github.com/foliavcs/folia/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	e := &entity.Entity{
		ID:       "p1",
		ParentID: "",
		Type:     "Page",
		Fields:   map[string]entity.Value{"name": "Test Page"},
	}
	data := e.ToMap()
	loaded, err := entity.FromMap(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, loaded.ID)
	assert.Equal(t, e.ParentID, loaded.ParentID)
	assert.Equal(t, e.Type, loaded.Type)
	assert.Equal(t, e.Fields["name"], loaded.Fields["name"])

	// a second round trip through ToMap/FromMap must be stable
	data2 := loaded.ToMap()
	loaded2, err := entity.FromMap(data2)
	require.NoError(t, err)
	assert.Equal(t, loaded.ID, loaded2.ID)
	assert.Equal(t, loaded.Fields, loaded2.Fields)
}

func TestFromMapRequiresTypeName(t *testing.T) {
	_, err := entity.FromMap(map[string]entity.Value{"id": "x"})
	assert.ErrorIs(t, err, entity.ErrInvalidTypeName)
}

func TestCloneIsDeep(t *testing.T) {
	e := &entity.Entity{
		ID:   "p1",
		Type: "Page",
		Fields: map[string]entity.Value{
			"meta": map[string]entity.Value{"views": int64(1)},
		},
	}
	clone := e.Clone()
	clone.Fields["meta"].(map[string]entity.Value)["views"] = int64(2)
	assert.Equal(t, int64(1), e.Fields["meta"].(map[string]entity.Value)["views"])
}

func TestValidateDepthExceeded(t *testing.T) {
	deep := map[string]entity.Value{
		"a": map[string]entity.Value{
			"b": map[string]entity.Value{
				"c": map[string]entity.Value{
					"d": "too deep",
				},
			},
		},
	}
	err := entity.ValidateDepth(deep, 0)
	assert.ErrorIs(t, err, entity.ErrDepthExceeded)
}

func TestDeepEqual(t *testing.T) {
	a := map[string]entity.Value{"x": int64(1), "y": map[string]entity.Value{"z": "v"}}
	b := map[string]entity.Value{"x": int64(1), "y": map[string]entity.Value{"z": "v"}}
	eq, err := entity.DeepEqual(a, b, 0)
	require.NoError(t, err)
	assert.True(t, eq)

	b["y"].(map[string]entity.Value)["z"] = "other"
	eq, err = entity.DeepEqual(a, b, 0)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestRegistry(t *testing.T) {
	reg := entity.NewRegistry()
	assert.False(t, reg.Has("Page"))

	reg.Register("Page", func() map[string]entity.Value {
		return map[string]entity.Value{"name": ""}
	})
	assert.True(t, reg.Has("Page"))

	payload, err := reg.New("Page")
	require.NoError(t, err)
	assert.Equal(t, "", payload["name"])

	_, err = reg.New("Missing")
	assert.ErrorIs(t, err, entity.ErrUnknownType)
}
