// Package users declares the server-side repository contract for accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in ID and CreatedAt. A duplicate email
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
