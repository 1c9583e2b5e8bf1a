package upload_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/domain"
	"blocknotes/internal/upload"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveServeRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := upload.NewStore(dir, "/files")
	require.NoError(t, err)

	obj, err := store.Save(ctx, "alice", bytes.NewReader(pngBytes(t, 3, 2)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URL, "/files/"+upload.OwnerKey("alice")+"/"))
	assert.True(t, strings.HasSuffix(obj.URL, ".png"))
	assert.Equal(t, 3, obj.Width)
	assert.Equal(t, 2, obj.Height)
	assert.Equal(t, "png", obj.Format)

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, obj.URL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(obj.URL, "/files/")))
	require.NoError(t, store.Remove(ctx, "alice", obj.URL))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, store.Remove(ctx, "alice", obj.URL), "already gone")
}

func TestRemove_OtherOwnerIsIgnored(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := upload.NewStore(dir, "/files/")
	require.NoError(t, err)

	obj, err := store.Save(ctx, "alice", bytes.NewReader(pngBytes(t, 2, 2)))
	require.NoError(t, err)
	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(obj.URL, "/files/")))

	require.NoError(t, store.Remove(ctx, "bob", obj.URL))
	_, err = os.Stat(path)
	assert.NoError(t, err, "bob cannot remove alice's upload")

	require.NoError(t, store.Purge(ctx, obj.URL))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListObjects_Cutoff(t *testing.T) {
	ctx := context.Background()
	store, err := upload.NewStore(t.TempDir(), "/files/")
	require.NoError(t, err)

	a, err := store.Save(ctx, "alice", bytes.NewReader(pngBytes(t, 1, 1)))
	require.NoError(t, err)
	b, err := store.Save(ctx, "bob", bytes.NewReader(pngBytes(t, 1, 1)))
	require.NoError(t, err)

	urls, err := store.ListObjects(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, urls, "fresh uploads are younger than the cutoff")

	urls, err = store.ListObjects(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.URL, b.URL}, urls)
}

func TestSave_Rejects(t *testing.T) {
	store, err := upload.NewStore(t.TempDir(), "/files/")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "alice", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	store.MaxBytes = 16
	_, err = store.Save(context.Background(), "alice", bytes.NewReader(pngBytes(t, 8, 8)))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRemove_IgnoresForeignURLs(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.png")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))
	store, err := upload.NewStore(filepath.Join(dir, "uploads"), "/files/")
	require.NoError(t, err)

	for _, url := range []string{"https://example.com/keep.png", "/files/../keep.png", "/files/", "/files/x/../../keep.png"} {
		assert.NoError(t, store.Remove(context.Background(), "alice", url))
		assert.NoError(t, store.Purge(context.Background(), url))
	}
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}

func TestHandler_NoListing(t *testing.T) {
	store, err := upload.NewStore(t.TempDir(), "/files/")
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
