// Package refreshtokens declares the repository contract for refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type Repository interface {
	// Create stores a new refresh token for userID expiring at now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete is a no-op for unknown tokens.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes tokens that expired before now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
