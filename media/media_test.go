package media_test

import (
	"testing"

	"github.com/foliavcs/folia/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetRoundTrip(t *testing.T) {
	s := media.New()
	item, err := s.AddMedia([]byte("hello world"), "photo.png", "page1")
	require.NoError(t, err)
	assert.Equal(t, "photo.png", item.Path)
	assert.Len(t, item.ContentHash, 32)

	got, err := s.GetMedia(item.ID, item.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestGetMediaWrongHashFails(t *testing.T) {
	s := media.New()
	item, err := s.AddMedia([]byte("data"), "a.bin", "p")
	require.NoError(t, err)
	_, err = s.GetMedia(item.ID, "deadbeef")
	assert.ErrorIs(t, err, media.ErrHashMismatch)
}

func TestDuplicatePathGetsDisambiguated(t *testing.T) {
	s := media.New()
	first, err := s.AddMedia([]byte("a"), "note.txt", "p")
	require.NoError(t, err)
	second, err := s.AddMedia([]byte("b"), "note.txt", "p")
	require.NoError(t, err)
	third, err := s.AddMedia([]byte("c"), "note.txt", "p")
	require.NoError(t, err)

	assert.Equal(t, "note.txt", first.Path)
	assert.Equal(t, "note_1.txt", second.Path)
	assert.Equal(t, "note_2.txt", third.Path)
}

func TestMoveToTrashThenCleanRemovesBlob(t *testing.T) {
	s := media.New()
	item, err := s.AddMedia([]byte("x"), "a.bin", "p")
	require.NoError(t, err)

	require.NoError(t, s.MoveMediaToTrash(item.ID, item.ContentHash))
	// path is freed once trashed, so a new item can reuse it verbatim.
	reused, err := s.AddMedia([]byte("y"), "a.bin", "p")
	require.NoError(t, err)
	assert.Equal(t, "a.bin", reused.Path)

	removed := s.CleanTrash()
	assert.Equal(t, 1, removed)

	_, err = s.GetMedia(item.ID, item.ContentHash)
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestRemoveMediaRequiresMatchingHash(t *testing.T) {
	s := media.New()
	item, err := s.AddMedia([]byte("x"), "a.bin", "p")
	require.NoError(t, err)
	err = s.RemoveMedia(item.ID, "wrong")
	assert.ErrorIs(t, err, media.ErrHashMismatch)
}
