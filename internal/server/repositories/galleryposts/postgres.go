package galleryposts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/jackc/pgx/v5/pgtype"
)

const galleryColumns = `id, user_id, author, title, description, images, object_keys, pending_keys, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

type PostgresRepository struct {
	db dbx.DBTX
	tm *pgtype.Map
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, tm: pgtype.NewMap()}
}

// text[] columns go through pgtype since database/sql has no array support.
func (r *PostgresRepository) scan(s scanner) (*models.GalleryPost, error) {
	g := &models.GalleryPost{}
	var status string
	err := s.Scan(
		&g.ID, &g.UserID, &g.Author, &g.Title, &g.Description,
		r.tm.SQLScanner(&g.Images), r.tm.SQLScanner(&g.ObjectKeys), r.tm.SQLScanner(&g.PendingKeys),
		&status, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Status = models.GalleryStatus(status)
	return g, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.GalleryPost, error) {
	g, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.GalleryPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select gallery posts: %w", err)
	}
	defer rows.Close()

	result := make([]*models.GalleryPost, 0)
	for rows.Next() {
		g, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListPublished(ctx context.Context) ([]*models.GalleryPost, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery_posts
		WHERE status = 'published' ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *PostgresRepository) ListStalePending(ctx context.Context, before time.Time) ([]*models.GalleryPost, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery_posts
		WHERE status = 'pending' AND created_at < $1`
	return r.list(ctx, query, before)
}

func (r *PostgresRepository) Create(ctx context.Context, g *models.GalleryPost) (*models.GalleryPost, error) {
	query := `
		INSERT INTO gallery_posts (user_id, author, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + galleryColumns

	created, err := r.scan(r.db.QueryRowContext(ctx, query, g.UserID, g.Author, g.Title, g.Description))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.GalleryPost, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery_posts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) AddPendingKey(ctx context.Context, id, key string) error {
	query := `
		UPDATE gallery_posts
		SET pending_keys = array_append(pending_keys, $2), updated_at = now()
		WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Attach(ctx context.Context, id, key, url string) (*models.GalleryPost, error) {
	query := `
		UPDATE gallery_posts
		SET pending_keys = array_remove(pending_keys, $2),
			object_keys = array_append(object_keys, $2),
			images = array_append(images, $3),
			updated_at = now()
		WHERE id = $1 AND status = 'pending' AND $2 = ANY(pending_keys)
		RETURNING ` + galleryColumns

	return r.scanOne(r.db.QueryRowContext(ctx, query, id, key, url))
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string) (*models.GalleryPost, error) {
	query := `
		UPDATE gallery_posts
		SET status = 'published', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND cardinality(images) > 0
		RETURNING ` + galleryColumns

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gallery_posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
