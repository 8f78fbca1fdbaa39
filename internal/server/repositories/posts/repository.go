// Package posts persists board posts.
package posts

import (
	"context"

	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type Repository interface {
	// List returns every post, newest first.
	List(ctx context.Context) ([]*models.Post, error)
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)

	// Update replaces the content of a post owned by userID. When version is
	// non-zero the stored version must match it. A row that does not qualify
	// yields common.ErrVersionConflict.
	Update(ctx context.Context, id, userID, content string, version int64) (*models.Post, error)

	// Delete removes a post owned by userID and reports whether a row went away.
	Delete(ctx context.Context, id, userID string) (bool, error)
}
