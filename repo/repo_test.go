package repo_test

import (
	"context"
	"testing"

	"github.com/foliavcs/folia/delta"
	"github.com/foliavcs/folia/entity"
	"github.com/foliavcs/folia/entitystore"
	"github.com/foliavcs/folia/repo"
	"github.com/foliavcs/folia/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() repo.Config {
	return repo.Config{
		DefaultBranch: "dev1",
		Indexes: []entitystore.IndexConfig{
			{Name: "id", Unique: true, Fields: []entitystore.FieldSpec{{Name: entity.IDField}}},
			{Name: "parent", Fields: []entitystore.FieldSpec{{Name: entity.ParentIDField}}},
		},
	}
}

func createChange(id string, fields map[string]entity.Value) delta.Change {
	e := &entity.Entity{ID: id, Type: "Page", Fields: fields}
	if v, ok := fields["parentId"]; ok {
		e.ParentID, _ = v.(string)
	}
	return delta.NewCreate(id, e.ToMap())
}

func TestCreateUpdateDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter()
	r, err := repo.Create(ctx, adapter, testConfig())
	require.NoError(t, err)

	h0 := r.RootHash()

	d1 := delta.New()
	require.NoError(t, d1.Add(createChange("p", map[string]entity.Value{"name": "Test Page"})))
	_, err = r.Commit(ctx, d1, "create p")
	require.NoError(t, err)
	h1 := r.RootHash()
	assert.False(t, h0.Equal(h1))

	d2 := delta.New()
	require.NoError(t, d2.Add(delta.NewUpdate("p",
		map[string]entity.Value{"name": "Test Page"},
		map[string]entity.Value{"name": "X"})))
	_, err = r.Commit(ctx, d2, "rename p")
	require.NoError(t, err)
	h2 := r.RootHash()
	assert.False(t, h1.Equal(h2))
	assert.False(t, h2.Equal(h0))

	require.NoError(t, r.Reset(ctx, -1))
	assert.True(t, r.RootHash().Equal(h1))

	require.NoError(t, r.Reset(ctx, -1))
	assert.True(t, r.RootHash().Equal(h0))
}

func TestResetMultipleCommitsRestoresInitialState(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter()
	r, err := repo.Create(ctx, adapter, testConfig())
	require.NoError(t, err)

	h0 := r.RootHash()

	d1 := delta.New()
	require.NoError(t, d1.Add(createChange("p", map[string]entity.Value{"name": "Test Page", "body": "A"})))
	_, err = r.Commit(ctx, d1, "create p")
	require.NoError(t, err)

	d2 := delta.New()
	require.NoError(t, d2.Add(delta.NewUpdate("p",
		map[string]entity.Value{"name": "Test Page"},
		map[string]entity.Value{"name": "Renamed"})))
	_, err = r.Commit(ctx, d2, "rename p")
	require.NoError(t, err)

	p, err := r.Store().FindOne(entitystore.Filter{entity.IDField: "p"})
	require.NoError(t, err)
	d3 := delta.New()
	require.NoError(t, d3.Add(delta.NewDelete("p", p.ToMap())))
	_, err = r.Commit(ctx, d3, "delete p")
	require.NoError(t, err)

	// undoing create-then-update-then-delete in one go must fold in
	// reverse-chronological order: rev(delete), then rev(update), then
	// rev(create), restoring the pre-create snapshot exactly.
	require.NoError(t, r.Reset(ctx, -3))
	assert.True(t, r.RootHash().Equal(h0))
	assert.NoError(t, r.VerifySnapshot())
}

func TestPullSameBranchConverges(t *testing.T) {
	ctx := context.Background()
	adapterA := storage.NewMemoryAdapter()
	a, err := repo.Create(ctx, adapterA, testConfig())
	require.NoError(t, err)

	adapterB := storage.NewMemoryAdapter()
	b, err := repo.Create(ctx, adapterB, testConfig())
	require.NoError(t, err)

	dPage := delta.New()
	require.NoError(t, dPage.Add(createChange("page1", map[string]entity.Value{"name": "Page"})))
	_, err = a.Commit(ctx, dPage, "create page1")
	require.NoError(t, err)

	dEntity := delta.New()
	require.NoError(t, dEntity.Add(createChange("entity1", map[string]entity.Value{"parentId": "page1"})))
	_, err = a.Commit(ctx, dEntity, "create entity1")
	require.NoError(t, err)

	require.NoError(t, b.Pull(ctx, a))
	assert.True(t, a.RootHash().Equal(b.RootHash()))

	dEntity2 := delta.New()
	require.NoError(t, dEntity2.Add(createChange("entity2", map[string]entity.Value{"parentId": "page1"})))
	_, err = b.Commit(ctx, dEntity2, "create entity2")
	require.NoError(t, err)

	require.NoError(t, a.Pull(ctx, b))
	assert.True(t, a.RootHash().Equal(b.RootHash()))
}

func TestVerifySnapshotAfterRemoval(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewMemoryAdapter()
	r, err := repo.Create(ctx, adapter, testConfig())
	require.NoError(t, err)

	d := delta.New()
	require.NoError(t, d.Add(createChange("page1", map[string]entity.Value{"name": "P1"})))
	require.NoError(t, d.Add(createChange("page2", map[string]entity.Value{"name": "P2"})))
	require.NoError(t, d.Add(createChange("note1", map[string]entity.Value{"parentId": "page1"})))
	require.NoError(t, d.Add(createChange("note2", map[string]entity.Value{"parentId": "page2"})))
	_, err = r.Commit(ctx, d, "seed")
	require.NoError(t, err)

	note1, err := r.Store().FindOne(entitystore.Filter{entity.IDField: "note1"})
	require.NoError(t, err)
	page1, err := r.Store().FindOne(entitystore.Filter{entity.IDField: "page1"})
	require.NoError(t, err)

	removal := delta.New()
	require.NoError(t, removal.Add(delta.NewDelete("note1", note1.ToMap())))
	require.NoError(t, removal.Add(delta.NewDelete("page1", page1.ToMap())))
	commit, err := r.Commit(ctx, removal, "remove page1+note1")
	require.NoError(t, err)

	assert.NoError(t, r.VerifySnapshot())
	assert.True(t, r.RootHash().Equal(commit.SnapshotHash))
}
