package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/galleryposts"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/magiclinks"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/posts"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	byID      map[string]*models.User
	next      int
	createErr error
	getErr    error
}

func newFakeUsers(us ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, x := range f.byID {
		if x.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.next++
	u.ID = fmt.Sprintf("u%d", f.next)
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	tokens    map[string]*models.RefreshToken
	findErr   error
	delErr    error
	createErr error
	// beforeDelete runs once ahead of the next Delete.
	beforeDelete func()
}

func newFakeRefresh() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if rt, ok := f.tokens[token]; ok {
		return rt, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	if hook := f.beforeDelete; hook != nil {
		f.beforeDelete = nil
		hook()
	}
	if f.delErr != nil {
		return f.delErr
	}
	if _, ok := f.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, rt := range f.tokens {
		if rt.Expires.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

// --- magic links ---

type fakeMagicRepo struct {
	links map[string]*models.MagicLink
}

func newFakeMagic() *fakeMagicRepo {
	return &fakeMagicRepo{links: map[string]*models.MagicLink{}}
}

func (f *fakeMagicRepo) Create(_ context.Context, email, token string, validity time.Duration) error {
	f.links[token] = &models.MagicLink{Email: email, Token: token, ExpiresAt: time.Now().Add(validity)}
	return nil
}

func (f *fakeMagicRepo) Consume(_ context.Context, token string) (*models.MagicLink, error) {
	ml, ok := f.links[token]
	if !ok || ml.UsedAt != nil {
		return nil, common.ErrorNotFound
	}
	now := time.Now()
	ml.UsedAt = &now
	return ml, nil
}

func (f *fakeMagicRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, ml := range f.links {
		if ml.ExpiresAt.Before(now) {
			delete(f.links, k)
			n++
		}
	}
	return n, nil
}

// --- posts ---

type fakePostsRepo struct {
	items   map[string]*models.Post
	next    int
	clock   time.Time
	listErr error
	lists   int
}

func newFakePosts() *fakePostsRepo {
	return &fakePostsRepo{items: map[string]*models.Post{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakePostsRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakePostsRepo) List(context.Context) ([]*models.Post, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Post, 0, len(f.items))
	for _, p := range f.items {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePostsRepo) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	f.next++
	now := f.tick()
	cp := *p
	cp.ID = fmt.Sprintf("p%d", f.next)
	cp.Version = 1
	cp.CreatedAt, cp.UpdatedAt = now, now
	f.items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakePostsRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostsRepo) Update(_ context.Context, id, userID, content string, version int64) (*models.Post, error) {
	p, ok := f.items[id]
	if !ok || p.UserID != userID || (version != 0 && p.Version != version) {
		return nil, common.ErrVersionConflict
	}
	p.Content = content
	p.Version++
	p.UpdatedAt = f.tick()
	cp := *p
	return &cp, nil
}

func (f *fakePostsRepo) Delete(_ context.Context, id, userID string) (bool, error) {
	p, ok := f.items[id]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(f.items, id)
	return true, nil
}

// --- gallery ---

type fakeGalleryRepo struct {
	items map[string]*models.GalleryPost
	next  int
}

func newFakeGallery() *fakeGalleryRepo {
	return &fakeGalleryRepo{items: map[string]*models.GalleryPost{}}
}

func (f *fakeGalleryRepo) ListPublished(context.Context) ([]*models.GalleryPost, error) {
	out := []*models.GalleryPost{}
	for _, g := range f.items {
		if g.Status == models.GalleryPublished {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeGalleryRepo) Create(_ context.Context, g *models.GalleryPost) (*models.GalleryPost, error) {
	f.next++
	cp := *g
	cp.ID = fmt.Sprintf("g%d", f.next)
	cp.Status = models.GalleryPending
	cp.Images, cp.ObjectKeys, cp.PendingKeys = []string{}, []string{}, []string{}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeGalleryRepo) GetByID(_ context.Context, id string) (*models.GalleryPost, error) {
	g, ok := f.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGalleryRepo) AddPendingKey(_ context.Context, id, key string) error {
	g, ok := f.items[id]
	if !ok || g.Status != models.GalleryPending {
		return common.ErrorNotFound
	}
	g.PendingKeys = append(g.PendingKeys, key)
	return nil
}

func (f *fakeGalleryRepo) Attach(_ context.Context, id, key, url string) (*models.GalleryPost, error) {
	g, ok := f.items[id]
	if !ok || g.Status != models.GalleryPending || !slices.Contains(g.PendingKeys, key) {
		return nil, common.ErrorNotFound
	}
	g.PendingKeys = slices.DeleteFunc(g.PendingKeys, func(k string) bool { return k == key })
	g.ObjectKeys = append(g.ObjectKeys, key)
	g.Images = append(g.Images, url)
	cp := *g
	return &cp, nil
}

func (f *fakeGalleryRepo) Finalize(_ context.Context, id string) (*models.GalleryPost, error) {
	g, ok := f.items[id]
	if !ok || g.Status != models.GalleryPending || len(g.Images) == 0 {
		return nil, common.ErrorNotFound
	}
	g.Status = models.GalleryPublished
	cp := *g
	return &cp, nil
}

func (f *fakeGalleryRepo) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeGalleryRepo) ListStalePending(_ context.Context, before time.Time) ([]*models.GalleryPost, error) {
	out := []*models.GalleryPost{}
	for _, g := range f.items {
		if g.Status == models.GalleryPending && g.CreatedAt.Before(before) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- object store ---

type fakeStore struct {
	presignErr error
	deleteErr  error
	deleted    [][]string
}

func (s *fakeStore) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "http://signed/" + key, nil
}

func (s *fakeStore) PublicURL(key string) string { return "http://public/" + key }

func (s *fakeStore) DeleteObjects(_ context.Context, keys []string) error {
	s.deleted = append(s.deleted, append([]string(nil), keys...))
	return s.deleteErr
}

// --- manager ---

type fakeRepoManager struct {
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
	magic   *fakeMagicRepo
	posts   *fakePostsRepo
	gallery *fakeGalleryRepo
}

func newFakeManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:   newFakeUsers(),
		refresh: newFakeRefresh(),
		magic:   newFakeMagic(),
		posts:   newFakePosts(),
		gallery: newFakeGallery(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.refresh }
func (m *fakeRepoManager) MagicLinks(dbx.DBTX) magiclinks.Repository       { return m.magic }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository                 { return m.posts }
func (m *fakeRepoManager) GalleryPosts(dbx.DBTX) galleryposts.Repository   { return m.gallery }
