// Package galleryposts persists multi-image gallery records and the object
// keys they own.
package galleryposts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type Repository interface {
	// ListPublished returns published records, newest first.
	ListPublished(ctx context.Context) ([]*models.GalleryPost, error)

	// Create inserts a pending record with no images.
	Create(ctx context.Context, g *models.GalleryPost) (*models.GalleryPost, error)
	GetByID(ctx context.Context, id string) (*models.GalleryPost, error)

	// AddPendingKey records an object name handed out for upload.
	AddPendingKey(ctx context.Context, id, key string) error

	// Attach moves key from pending_keys to object_keys and appends url to
	// images. Returns common.ErrorNotFound if the record is not pending or
	// the key was never handed out.
	Attach(ctx context.Context, id, key, url string) (*models.GalleryPost, error)

	// Finalize publishes a pending record holding at least one image.
	Finalize(ctx context.Context, id string) (*models.GalleryPost, error)

	Delete(ctx context.Context, id string) error

	// ListStalePending returns pending records created before the cutoff.
	ListStalePending(ctx context.Context, before time.Time) ([]*models.GalleryPost, error)
}
