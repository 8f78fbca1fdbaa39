package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/server/cache"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/snapboard/internal/server/storage"
)

// GalleryService runs the two-phase gallery commit: a pending record is
// created first, images are uploaded and attached one by one, and the record
// is published at the end. A pending record that is never finalized is
// removed together with its objects, either by the owner or by SweepStale.
type GalleryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	cache       cache.ListCache
	logger      logging.Logger
	pendingTTL  time.Duration
	now         func() time.Time
}

func NewGalleryService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore, c cache.ListCache,
	pendingTTL time.Duration, logger logging.Logger) *GalleryService {
	return &GalleryService{
		db:          db,
		repomanager: m,
		store:       store,
		cache:       c,
		logger:      logger.With("module", "gallery"),
		pendingTTL:  pendingTTL,
		now:         time.Now,
	}
}

// List returns published records, newest first.
func (s *GalleryService) List(ctx context.Context) ([]*models.GalleryPost, error) {
	var cached []*models.GalleryPost
	if ok, err := s.cache.Get(ctx, cache.GalleryKey, &cached); err != nil {
		s.logger.Warn(ctx, "gallery cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	// the generation is read before the source so a write landing during
	// the read makes the fill a no-op
	gen, genErr := s.cache.Generation(ctx, cache.GalleryKey)
	if genErr != nil {
		s.logger.Warn(ctx, "gallery cache read failed", "error", genErr)
	}

	items, err := s.repomanager.GalleryPosts(s.db).ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		if _, err := s.cache.Fill(ctx, cache.GalleryKey, gen, items); err != nil {
			s.logger.Warn(ctx, "gallery cache write failed", "error", err)
		}
	}
	return items, nil
}

// Begin creates the pending record that uploads attach to. The author is
// the owner's display name at the time of the call.
func (s *GalleryService) Begin(ctx context.Context, userID, title, description string) (*models.GalleryPost, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}

	owner, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	author := owner.DisplayName()

	g, err := s.repomanager.GalleryPosts(s.db).Create(ctx, &models.GalleryPost{
		UserID:      userID,
		Author:      author,
		Title:       title,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "gallery upload started", "gallery_id", g.ID, "user_id", userID)
	return g, nil
}

// RequestUpload names a new object and returns a presigned PUT for it. The
// name is recorded on the pending record before the URL is handed out so
// the object can always be traced back for cleanup.
func (s *GalleryService) RequestUpload(ctx context.Context, userID, galleryID, fileName, contentType string) (*models.UploadTicket, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: only images can be uploaded", common.ErrorValidation)
	}
	if _, err := s.ownedPending(ctx, userID, galleryID); err != nil {
		return nil, err
	}

	key, err := storage.ObjectName(s.now(), fileName)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.GalleryPosts(s.db).AddPendingKey(ctx, galleryID, key); err != nil {
		return nil, err
	}

	url, err := s.store.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign error: %w", err)
	}
	return &models.UploadTicket{ObjectName: key, UploadURL: url, PublicURL: s.store.PublicURL(key)}, nil
}

// Attach appends an uploaded object to the record's images.
func (s *GalleryService) Attach(ctx context.Context, userID, galleryID, objectName string) (*models.GalleryPost, error) {
	if objectName == "" {
		return nil, fmt.Errorf("%w: object name is required", common.ErrorValidation)
	}
	if _, err := s.ownedPending(ctx, userID, galleryID); err != nil {
		return nil, err
	}
	return s.repomanager.GalleryPosts(s.db).Attach(ctx, galleryID, objectName, s.store.PublicURL(objectName))
}

// Finalize publishes a pending record that holds at least one image.
func (s *GalleryService) Finalize(ctx context.Context, userID, galleryID string) (*models.GalleryPost, error) {
	g, err := s.ownedPending(ctx, userID, galleryID)
	if err != nil {
		return nil, err
	}
	if len(g.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", common.ErrorValidation)
	}

	published, err := s.repomanager.GalleryPosts(s.db).Finalize(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	if len(published.PendingKeys) > 0 {
		// presigned but never attached
		s.deleteObjects(ctx, published.PendingKeys)
	}
	s.invalidate(ctx)
	s.logger.Info(ctx, "gallery published", "gallery_id", galleryID, "images", len(published.Images))
	return published, nil
}

// Delete removes a record owned by userID together with its objects.
// Deleting a missing record succeeds.
func (s *GalleryService) Delete(ctx context.Context, userID, galleryID string) error {
	repo := s.repomanager.GalleryPosts(s.db)
	g, err := repo.GetByID(ctx, galleryID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if g.UserID != userID {
		return common.ErrorForbidden
	}
	if err := repo.Delete(ctx, galleryID); err != nil {
		return err
	}

	s.deleteObjects(ctx, g.AllObjectKeys())
	if g.Status == models.GalleryPublished {
		s.invalidate(ctx)
	}
	return nil
}

// SweepStale deletes pending records older than the configured TTL along
// with their objects and reports how many records went away.
func (s *GalleryService) SweepStale(ctx context.Context, now time.Time) (int64, error) {
	repo := s.repomanager.GalleryPosts(s.db)
	stale, err := repo.ListStalePending(ctx, now.Add(-s.pendingTTL))
	if err != nil {
		return 0, err
	}

	var n int64
	for _, g := range stale {
		if err := repo.Delete(ctx, g.ID); err != nil {
			return n, err
		}
		s.deleteObjects(ctx, g.AllObjectKeys())
		n++
	}
	return n, nil
}

func (s *GalleryService) ownedPending(ctx context.Context, userID, galleryID string) (*models.GalleryPost, error) {
	g, err := s.repomanager.GalleryPosts(s.db).GetByID(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, common.ErrorForbidden
	}
	if g.Status != models.GalleryPending {
		return nil, fmt.Errorf("%w: gallery is already published", common.ErrorValidation)
	}
	return g, nil
}

// Object removal failures are logged, not returned: the record is already
// gone and a retry from the client cannot reach the objects any more.
func (s *GalleryService) deleteObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.store.DeleteObjects(ctx, keys); err != nil {
		s.logger.Error(ctx, "object cleanup failed", "keys", keys, "error", err)
	}
}

func (s *GalleryService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.GalleryKey); err != nil {
		s.logger.Warn(ctx, "gallery cache invalidate failed", "error", err)
	}
}
