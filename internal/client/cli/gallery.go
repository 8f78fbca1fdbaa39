package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapboard/internal/client/client"
	"github.com/dmitrijs2005/snapboard/internal/client/gallery"
	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/filex"
)

var getList = GetList

func (a *App) GalleryList(ctx context.Context) error {
	items, err := a.gallery.List(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.galleryItems = items
	a.mu.Unlock()

	if len(items) == 0 {
		fmt.Fprintln(a.out, "The gallery is empty")
		return nil
	}
	user := a.mirror.CurrentUser()
	for _, g := range items {
		marker := ""
		if gallery.CanDelete(g, user) {
			marker = " *"
		}
		fmt.Fprintf(a.out, "[%s] %q by %s, %s, %d image(s)%s\n", shortID(g.ID), g.Title, g.Author, formatTime(g.CreatedAt), len(g.Images), marker)
		if g.Description != "" {
			fmt.Fprintf(a.out, "    %s\n", g.Description)
		}
		for _, u := range g.Images {
			fmt.Fprintf(a.out, "    %s\n", u)
		}
	}
	return nil
}

// GalleryUpload stages local files and publishes them as one entry.
func (a *App) GalleryUpload(ctx context.Context) error {
	if !a.isLoggedIn() {
		return common.ErrorUnauthorized
	}
	title, err := GetSimpleText(a.reader, "Enter title", a.out)
	if err != nil {
		return err
	}
	description, err := GetSimpleText(a.reader, "Enter description (optional)", a.out)
	if err != nil {
		return err
	}
	paths, err := getList(a.reader, "Enter image paths", a.out)
	if err != nil {
		return err
	}

	files := make([]filex.LocalFile, 0, len(paths))
	for _, p := range paths {
		f, err := filex.ReadLocalFile(p)
		if err != nil {
			return err
		}
		files = append(files, *f)
	}
	if skipped := len(files) - len(gallery.ImagesOnly(files)); skipped > 0 {
		fmt.Fprintf(a.out, "Skipping %d file(s) that are not images\n", skipped)
	}

	req := gallery.UploadRequest{
		Title:       title,
		Description: description,
		Files:       files,
		OnProgress: func(done, total int) {
			fmt.Fprintf(a.out, "uploaded %d/%d\n", done, total)
		},
		OnComplete: func(g *models.GalleryPost) { a.refreshGallery(ctx, g) },
	}

	for {
		g, err := a.gallery.Upload(ctx, req)
		if err == nil {
			fmt.Fprintf(a.out, "Published [%s] with %d image(s)\n", shortID(g.ID), len(g.Images))
			return nil
		}
		if !retryable(err) || !a.confirmRetry(err) {
			return err
		}
	}
}

// retryable reports whether resending the same request could succeed.
func retryable(err error) bool {
	return !errors.Is(err, common.ErrorValidation) &&
		!errors.Is(err, common.ErrorUnauthorized) &&
		!errors.Is(err, client.ErrUnauthorized) &&
		!errors.Is(err, common.ErrorForbidden)
}

func (a *App) confirmRetry(cause error) bool {
	fmt.Fprintf(a.out, "Upload failed: %s\n", describe(cause))
	answer, err := getSimpleText(a.reader, "Retry with the same title, description and files? [y/N]", a.out)
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// refreshGallery reloads the cached listing after a publish. If the reload
// fails the published record is added locally so it can still be addressed.
func (a *App) refreshGallery(ctx context.Context, published *models.GalleryPost) {
	items, err := a.gallery.List(ctx)
	if err != nil {
		a.logger.Warn(ctx, "gallery refresh failed", "error", err)
		a.mu.Lock()
		a.galleryItems = append([]models.GalleryPost{*published}, a.galleryItems...)
		a.mu.Unlock()
		return
	}
	a.mu.Lock()
	a.galleryItems = items
	a.mu.Unlock()
}

func (a *App) GalleryDelete(ctx context.Context, id string) error {
	a.mu.Lock()
	loaded := len(a.galleryItems) > 0
	a.mu.Unlock()
	if !loaded {
		items, err := a.gallery.List(ctx)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.galleryItems = items
		a.mu.Unlock()
	}

	a.mu.Lock()
	items := append([]models.GalleryPost(nil), a.galleryItems...)
	a.mu.Unlock()

	ids := make([]string, len(items))
	for i, g := range items {
		ids[i] = g.ID
	}
	full, err := resolveID(ids, id)
	if err != nil {
		return err
	}

	var target models.GalleryPost
	for _, g := range items {
		if g.ID == full {
			target = g
		}
	}
	if err := a.gallery.Delete(ctx, target); err != nil {
		return err
	}

	a.mu.Lock()
	kept := a.galleryItems[:0]
	for _, g := range a.galleryItems {
		if g.ID != full {
			kept = append(kept, g)
		}
	}
	a.galleryItems = kept
	a.mu.Unlock()

	fmt.Fprintf(a.out, "Deleted [%s]\n", shortID(full))
	return nil
}
