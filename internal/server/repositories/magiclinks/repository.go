// Package magiclinks stores single-use sign-in tokens.
package magiclinks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, email string, token string, validity time.Duration) error

	// Consume marks an unused token as used and returns it. Unknown or
	// already used tokens yield common.ErrorNotFound. Expiry is left to the
	// caller.
	Consume(ctx context.Context, token string) (*models.MagicLink, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
