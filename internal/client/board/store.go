// Package board keeps the client's copy of the shared text board. Every
// mutation goes to the gateway first; local state changes only after the
// gateway accepted it.
package board

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
)

// Gateway is the part of the client handle the store needs.
type Gateway interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, author, content string) (*models.Post, error)
	UpdatePost(ctx context.Context, id, content string, version int64) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// Store is the local cache of posts, newest first, as of the last List or
// successful mutation. It is safe for concurrent use.
type Store struct {
	gw     Gateway
	logger logging.Logger

	mu    sync.RWMutex
	posts []models.Post
}

func NewStore(gw Gateway, l logging.Logger) *Store {
	return &Store{gw: gw, logger: l.With("module", "board")}
}

// List replaces local state with the gateway's posts. On failure the
// previous state is kept.
func (s *Store) List(ctx context.Context) error {
	posts, err := s.gw.ListPosts(ctx)
	if err != nil {
		s.logger.Warn(ctx, "list posts failed", "error", err)
		return err
	}

	s.mu.Lock()
	s.posts = append([]models.Post(nil), posts...)
	s.mu.Unlock()
	return nil
}

// Create publishes a post and prepends the gateway's copy. Blank author or
// content is rejected before any remote call.
func (s *Store) Create(ctx context.Context, author, content string) (*models.Post, error) {
	author, content = strings.TrimSpace(author), strings.TrimSpace(content)
	if author == "" || content == "" {
		return nil, common.ErrorValidation
	}

	p, err := s.gw.CreatePost(ctx, author, content)
	if err != nil {
		s.logger.Warn(ctx, "create post failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.posts = append([]models.Post{*p}, s.posts...)
	s.mu.Unlock()

	out := *p
	return &out, nil
}

// Update sends new content together with the version the store last saw.
// A post the store does not hold is sent without a version check.
func (s *Store) Update(ctx context.Context, id, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.ErrorValidation
	}

	var version int64
	s.mu.RLock()
	if i := s.indexOf(id); i >= 0 {
		version = s.posts[i].Version
	}
	s.mu.RUnlock()

	p, err := s.gw.UpdatePost(ctx, id, content, version)
	if err != nil {
		s.logger.Warn(ctx, "update post failed", "post_id", id, "error", err)
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.posts[i] = *p
	}
	s.mu.Unlock()

	out := *p
	return &out, nil
}

// Delete removes the post remotely, then filters it out locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeletePost(ctx, id); err != nil {
		s.logger.Warn(ctx, "delete post failed", "post_id", id, "error", err)
		return err
	}

	s.mu.Lock()
	kept := s.posts[:0]
	for _, p := range s.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.posts = kept
	s.mu.Unlock()
	return nil
}

// Posts returns a snapshot of local state.
func (s *Store) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Post(nil), s.posts...)
}

// Get returns the locally held post with the given id.
func (s *Store) Get(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.posts[i], true
	}
	return models.Post{}, false
}

// CanModify reports whether user owns p. Ownership is by user id, never by
// display name.
func CanModify(p models.Post, user *models.User) bool {
	return user != nil && user.ID != "" && p.UserID == user.ID
}

func (s *Store) indexOf(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}
