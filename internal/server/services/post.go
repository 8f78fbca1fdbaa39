package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/server/cache"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/repomanager"
)

// PostService owns the board. Only the author of a post may change it.
// Updates keep CreatedAt, bump Version and set UpdatedAt.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.ListCache
	logger      logging.Logger
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, c cache.ListCache, logger logging.Logger) *PostService {
	return &PostService{db: db, repomanager: m, cache: c, logger: logger.With("module", "posts")}
}

func (s *PostService) List(ctx context.Context) ([]*models.Post, error) {
	var cached []*models.Post
	if ok, err := s.cache.Get(ctx, cache.PostsKey, &cached); err != nil {
		s.logger.Warn(ctx, "post cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	// the generation is read before the source so a write landing during
	// the read makes the fill a no-op
	gen, genErr := s.cache.Generation(ctx, cache.PostsKey)
	if genErr != nil {
		s.logger.Warn(ctx, "post cache read failed", "error", genErr)
	}

	posts, err := s.repomanager.Posts(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		if _, err := s.cache.Fill(ctx, cache.PostsKey, gen, posts); err != nil {
			s.logger.Warn(ctx, "post cache write failed", "error", err)
		}
	}
	return posts, nil
}

func (s *PostService) Create(ctx context.Context, userID, author, content string) (*models.Post, error) {
	author, content = strings.TrimSpace(author), strings.TrimSpace(content)
	if author == "" || content == "" {
		return nil, fmt.Errorf("%w: author and content are required", common.ErrorValidation)
	}

	post, err := s.repomanager.Posts(s.db).Create(ctx, &models.Post{UserID: userID, Author: author, Content: content})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info(ctx, "post created", "post_id", post.ID, "user_id", userID)
	return post, nil
}

// Update replaces the content of a post. A zero version skips the
// optimistic check.
func (s *PostService) Update(ctx context.Context, userID, id, content string, version int64) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", common.ErrorValidation)
	}

	var updated *models.Post
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return common.ErrorForbidden
		}
		if version != 0 && version != current.Version {
			return common.ErrVersionConflict
		}
		updated, err = repo.Update(ctx, id, userID, content, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a post owned by userID. Deleting a missing post succeeds.
func (s *PostService) Delete(ctx context.Context, userID, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return common.ErrorForbidden
		}
		_, err = repo.Delete(ctx, id, userID)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *PostService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.PostsKey); err != nil {
		s.logger.Warn(ctx, "post cache invalidate failed", "error", err)
	}
}
