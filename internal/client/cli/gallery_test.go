package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/snapboard/internal/client/client"
	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestApp_GalleryUpload(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cat.png")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(img, pngHeader, 0o600))
	require.NoError(t, os.WriteFile(txt, []byte("not an image"), 0o600))

	fake := newFakeGateway()
	a, _ := signedInApp(t, fake, "Cats\nmy cat\n"+img+"\n"+txt+"\n\n")
	out := a.out.(*syncBuffer)

	require.NoError(t, a.GalleryUpload(context.Background()))

	require.Len(t, fake.gallery, 1)
	g := fake.gallery[0]
	require.Equal(t, models.GalleryPublished, g.Status)
	require.Equal(t, "Cats", g.Title)
	require.Equal(t, "Ann", g.Author)
	require.Len(t, g.Images, 1)
	require.Len(t, fake.uploads, 1)

	require.Contains(t, out.String(), "Skipping 1 file(s)")
	require.Contains(t, out.String(), "uploaded 1/1")
	require.Contains(t, out.String(), "Published [")
}

func TestApp_GalleryUpload_MissingFile(t *testing.T) {
	fake := newFakeGateway()
	a, _ := signedInApp(t, fake, "Cats\n\n/does/not/exist.png\n\n")

	require.Error(t, a.GalleryUpload(context.Background()))
	require.False(t, fake.called("BeginGallery"))
}

func TestApp_GalleryUpload_RequiresSession(t *testing.T) {
	fake := newFakeGateway()
	a, _ := newTestApp(t, fake, "")

	require.ErrorIs(t, a.GalleryUpload(context.Background()), common.ErrorUnauthorized)
}

func TestApp_GalleryListAndDelete(t *testing.T) {
	fake := newFakeGateway()
	a, u := signedInApp(t, fake, "")
	fake.gallery = []models.GalleryPost{
		{ID: "g-mine-01", UserID: u.ID, Author: "Ann", Title: "Mine", Status: models.GalleryPublished, Images: []string{"http://cdn/1.png"}},
		{ID: "g-other-01", UserID: "other", Author: "Bob", Title: "Theirs", Status: models.GalleryPublished},
		{ID: "g-pend-01", UserID: u.ID, Title: "Pending", Status: models.GalleryPending},
	}
	out := a.out.(*syncBuffer)

	require.NoError(t, a.GalleryList(context.Background()))
	require.Contains(t, out.String(), `"Mine" by Ann`)
	require.NotContains(t, out.String(), "Pending")

	err := a.GalleryDelete(context.Background(), "g-other")
	require.ErrorIs(t, err, common.ErrorForbidden)
	require.False(t, fake.called("DeleteGallery"))

	require.NoError(t, a.GalleryDelete(context.Background(), "g-mine"))
	require.True(t, fake.called("DeleteGallery"))
	require.Len(t, a.galleryItems, 1)
}

func TestApp_GalleryDelete_LoadsListFirst(t *testing.T) {
	fake := newFakeGateway()
	a, u := signedInApp(t, fake, "")
	fake.gallery = []models.GalleryPost{{ID: "g-1", UserID: u.ID, Status: models.GalleryPublished}}

	require.NoError(t, a.GalleryDelete(context.Background(), "g-1"))
	require.True(t, fake.called("ListGallery"))
	require.Empty(t, fake.gallery)
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, pngHeader, 0o600))
	return p
}

func TestApp_GalleryUpload_RefreshesListing(t *testing.T) {
	fake := newFakeGateway()
	img := writeImage(t, "dog.png")
	a, u := signedInApp(t, fake, "Dogs\n\n"+img+"\n\n")
	fake.gallery = []models.GalleryPost{{ID: "g-old-01", UserID: u.ID, Title: "Old", Status: models.GalleryPublished}}

	require.NoError(t, a.GalleryList(context.Background()))
	require.Len(t, a.galleryItems, 1)

	require.NoError(t, a.GalleryUpload(context.Background()))
	require.Len(t, a.galleryItems, 2)
	newID := a.galleryItems[0].ID
	assert.NotEqual(t, "g-old-01", newID)

	require.NoError(t, a.GalleryDelete(context.Background(), newID))
	require.Len(t, fake.gallery, 1)
	assert.Equal(t, "g-old-01", fake.gallery[0].ID)
}

func TestApp_GalleryUpload_RetryReusesRequest(t *testing.T) {
	fake := newFakeGateway()
	fake.failUploads = 1
	img := writeImage(t, "cat.png")
	a, _ := signedInApp(t, fake, "Cats\nmy cat\n"+img+"\n\ny\n")
	out := a.out.(*syncBuffer)

	require.NoError(t, a.GalleryUpload(context.Background()))

	require.Len(t, fake.gallery, 1)
	g := fake.gallery[0]
	assert.Equal(t, models.GalleryPublished, g.Status)
	assert.Equal(t, "Cats", g.Title)
	assert.Equal(t, "my cat", g.Description)
	assert.Len(t, g.Images, 1)
	assert.True(t, fake.called("DeleteGallery"))
	assert.Contains(t, out.String(), "Upload failed: server unavailable")
}

func TestApp_GalleryUpload_RetryDeclined(t *testing.T) {
	fake := newFakeGateway()
	fake.failUploads = 1
	img := writeImage(t, "cat.png")
	a, _ := signedInApp(t, fake, "Cats\n\n"+img+"\n\nn\n")

	err := a.GalleryUpload(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Empty(t, fake.gallery)
}
