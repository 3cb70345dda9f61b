package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalGalleryStore {
	t.Helper()
	store, err := NewLocalGalleryStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestGalleryDirConvention(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, "DPT001_2027/7376221CS101", store.GalleryDir("DPT001", "2027", "7376221CS101"))
}

func TestStoreSaveAndList(t *testing.T) {
	store := newTestStore(t)
	dir := store.GalleryDir("DPT001", "2027", "REG1")

	for _, name := range []string{"face_10.jpg", "face_2.jpg", "face_1.jpg"} {
		rel, err := store.Save(dir, name, strings.NewReader("jpegdata"))
		require.NoError(t, err)
		assert.Equal(t, dir+"/"+name, rel)
	}

	names, err := store.ListFiles(dir)
	require.NoError(t, err)
	// natural order, not lexicographic
	assert.Equal(t, []string{"face_1.jpg", "face_2.jpg", "face_10.jpg"}, names)

	count, err := store.CountFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStoreCountIgnoresNonImages(t *testing.T) {
	store := newTestStore(t)
	dir := store.GalleryDir("DPT002", "2028", "REG2")

	_, err := store.Save(dir, "face_1.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	_, err = store.Save(dir, "notes.txt", strings.NewReader("not an image"))
	require.NoError(t, err)

	count, err := store.CountFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	dir := store.GalleryDir("DPT001", "2027", "REG3")

	rel, err := store.Save(dir, "face_1.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(rel))
	count, err := store.CountFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// deleting a missing file is not an error
	assert.NoError(t, store.Delete(rel))
}

func TestStoreListGalleryDirs(t *testing.T) {
	store := newTestStore(t)

	for _, reg := range []string{"REG1", "REG2"} {
		dir := store.GalleryDir("DPT001", "2027", reg)
		_, err := store.Save(dir, "face_1.jpg", strings.NewReader("jpegdata"))
		require.NoError(t, err)
	}
	dir := store.GalleryDir("DPT002", "2028", "REG9")
	_, err := store.Save(dir, "face_1.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)

	dirs, err := store.ListGalleryDirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"DPT001_2027/REG1",
		"DPT001_2027/REG2",
		"DPT002_2028/REG9",
	}, dirs)
}

func TestStoreRemoveGallery(t *testing.T) {
	store := newTestStore(t)
	dir := store.GalleryDir("DPT001", "2027", "REG1")
	_, err := store.Save(dir, "face_1.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveGallery(dir))

	full, err := store.FullPath(dir)
	require.NoError(t, err)
	_, statErr := os.Stat(full)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FullPath(filepath.Join("..", "..", "etc", "passwd"))
	assert.Error(t, err)

	_, err = store.Save(filepath.Join("..", "outside"), "face.jpg", strings.NewReader("x"))
	assert.Error(t, err)
}
