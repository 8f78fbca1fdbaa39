// Package gallery turns a selection of local images into one published
// gallery entry.
//
// Uploads follow a two-phase commit against the gateway: a pending record
// is created first, every image is uploaded and attached to it in order, and
// the record is finalized last. Any failure deletes the pending record, which
// also removes the objects already uploaded for it.
package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/filex"
	"github.com/dmitrijs2005/snapboard/internal/logging"
)

type Gateway interface {
	ListGallery(ctx context.Context) ([]models.GalleryPost, error)
	BeginGallery(ctx context.Context, title, description string) (*models.GalleryPost, error)
	RequestImageUpload(ctx context.Context, galleryID, fileName, contentType string) (*models.UploadTicket, error)
	UploadObject(ctx context.Context, ticket *models.UploadTicket, contentType string, body []byte) error
	AttachImage(ctx context.Context, galleryID, objectName string) (*models.GalleryPost, error)
	FinalizeGallery(ctx context.Context, galleryID string) (*models.GalleryPost, error)
	DeleteGallery(ctx context.Context, galleryID string) error
}

// UserSource yields the signed-in user, or nil.
type UserSource interface {
	CurrentUser() *models.User
}

// UploadRequest is what the user staged. Flow never modifies it, so a failed
// upload can be retried with the same value.
type UploadRequest struct {
	Title       string
	Description string
	Files       []filex.LocalFile
	// OnProgress, when set, is called after each attached image.
	OnProgress func(done, total int)
	// OnComplete, when set, is called with the published record after a
	// successful upload. Callers use it to refresh their gallery listing.
	OnComplete func(*models.GalleryPost)
}

type Flow struct {
	gw     Gateway
	users  UserSource
	logger logging.Logger
}

func NewFlow(gw Gateway, users UserSource, l logging.Logger) *Flow {
	return &Flow{gw: gw, users: users, logger: l.With("module", "gallery")}
}

// ImagesOnly keeps the files whose content type is image/*.
func ImagesOnly(files []filex.LocalFile) []filex.LocalFile {
	out := make([]filex.LocalFile, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f.ContentType, "image/") {
			out = append(out, f)
		}
	}
	return out
}

// Upload publishes the staged images as one gallery entry and returns it.
// The gateway sets the author from the signed-in account.
func (f *Flow) Upload(ctx context.Context, req UploadRequest) (*models.GalleryPost, error) {
	user := f.users.CurrentUser()
	if user == nil {
		return nil, common.ErrorUnauthorized
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	images := ImagesOnly(req.Files)
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", common.ErrorValidation)
	}

	pending, err := f.gw.BeginGallery(ctx, title, strings.TrimSpace(req.Description))
	if err != nil {
		f.logger.Warn(ctx, "begin gallery failed", "error", err)
		return nil, err
	}

	published, err := f.fill(ctx, pending.ID, images, req.OnProgress)
	if err != nil {
		f.rollback(ctx, pending.ID, err)
		return nil, err
	}

	f.logger.Info(ctx, "gallery published", "gallery_id", published.ID, "images", len(published.Images))
	if req.OnComplete != nil {
		req.OnComplete(published)
	}
	return published, nil
}

func (f *Flow) fill(ctx context.Context, id string, images []filex.LocalFile, progress func(int, int)) (*models.GalleryPost, error) {
	for i, img := range images {
		ticket, err := f.gw.RequestImageUpload(ctx, id, img.Name, img.ContentType)
		if err != nil {
			return nil, fmt.Errorf("request upload for %s: %w", img.Name, err)
		}
		if err := f.gw.UploadObject(ctx, ticket, img.ContentType, img.Data); err != nil {
			return nil, err
		}
		if _, err := f.gw.AttachImage(ctx, id, ticket.ObjectName); err != nil {
			return nil, fmt.Errorf("attach %s: %w", img.Name, err)
		}
		if progress != nil {
			progress(i+1, len(images))
		}
	}
	return f.gw.FinalizeGallery(ctx, id)
}

// rollback deletes the pending record even when ctx is already cancelled.
func (f *Flow) rollback(ctx context.Context, id string, cause error) {
	f.logger.Warn(ctx, "gallery upload failed, rolling back", "gallery_id", id, "error", cause)
	if err := f.gw.DeleteGallery(context.WithoutCancel(ctx), id); err != nil {
		f.logger.Error(ctx, "gallery rollback failed", "gallery_id", id, "error", err)
	}
}

// CanDelete reports whether user owns g.
func CanDelete(g models.GalleryPost, user *models.User) bool {
	return user != nil && user.ID != "" && g.UserID == user.ID
}

// Delete removes a gallery entry the signed-in user owns. Other users'
// entries are refused without contacting the gateway.
func (f *Flow) Delete(ctx context.Context, g models.GalleryPost) error {
	user := f.users.CurrentUser()
	if user == nil {
		return common.ErrorUnauthorized
	}
	if !CanDelete(g, user) {
		return common.ErrorForbidden
	}
	if err := f.gw.DeleteGallery(ctx, g.ID); err != nil {
		f.logger.Warn(ctx, "delete gallery failed", "gallery_id", g.ID, "error", err)
		return err
	}
	return nil
}

// List returns published entries, newest first.
func (f *Flow) List(ctx context.Context) ([]models.GalleryPost, error) {
	items, err := f.gw.ListGallery(ctx)
	if err != nil {
		f.logger.Warn(ctx, "list gallery failed", "error", err)
		return nil, err
	}
	return items, nil
}
