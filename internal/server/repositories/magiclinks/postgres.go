package magiclinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, email string, token string, validity time.Duration) error {
	query := `
		INSERT INTO magic_links (email, token, expires_at)
		VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, email, token, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, token string) (*models.MagicLink, error) {
	query := `
		UPDATE magic_links SET used_at = now()
		WHERE token = $1 AND used_at IS NULL
		RETURNING id, email, token, expires_at, used_at, created_at`

	ml := &models.MagicLink{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&ml.ID, &ml.Email, &ml.Token, &ml.ExpiresAt, &usedAt, &ml.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		ml.UsedAt = &usedAt.Time
	}
	return ml, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
