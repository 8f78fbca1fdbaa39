package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeGateway behaves like the posts table: ids and timestamps are assigned
// on insert, updates bump the version, deletes are idempotent.
type fakeGateway struct {
	mu    sync.Mutex
	rows  map[string]models.Post
	seq   int
	clock time.Time
	calls int

	listErr, createErr, updateErr, deleteErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rows: map[string]models.Post{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeGateway) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeGateway) ListPosts(ctx context.Context) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Post, 0, len(f.rows))
	for _, p := range f.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeGateway) CreatePost(ctx context.Context, author, content string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	now := f.tick()
	p := models.Post{ID: fmt.Sprintf("p%d", f.seq), UserID: "u1", Author: author, Content: content, Version: 1, CreatedAt: now, UpdatedAt: now}
	f.rows[p.ID] = p
	return &p, nil
}

func (f *fakeGateway) UpdatePost(ctx context.Context, id, content string, version int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if version != 0 && version != p.Version {
		return nil, common.ErrVersionConflict
	}
	p.Content = content
	p.Version++
	p.UpdatedAt = f.tick()
	f.rows[id] = p
	return &p, nil
}

func (f *fakeGateway) DeletePost(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newStore(t *testing.T) (*Store, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	return NewStore(gw, logging.Nop{}), gw
}

func TestStore_CreateThenList(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	p, err := s.Create(ctx, "  Ann ", " hello ")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ann", p.Author)
	assert.Equal(t, "hello", p.Content)
	assert.False(t, p.CreatedAt.IsZero())

	require.NoError(t, s.List(ctx))
	posts := s.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, *p, posts[0])
}

func TestStore_CreatePrependsNewest(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.Create(ctx, "Ann", "first")
	require.NoError(t, err)
	_, err = s.Create(ctx, "Ann", "second")
	require.NoError(t, err)

	local := s.Posts()
	require.NoError(t, s.List(ctx))
	assert.Equal(t, s.Posts(), local)
	assert.Equal(t, "second", local[0].Content)
}

func TestStore_CreateRejectsBlankWithoutRemoteCall(t *testing.T) {
	ctx := context.Background()
	s, gw := newStore(t)

	for _, tc := range [][2]string{{"", "x"}, {"Ann", "   "}, {" ", ""}} {
		_, err := s.Create(ctx, tc[0], tc[1])
		require.ErrorIs(t, err, common.ErrorValidation)
	}
	assert.Zero(t, gw.callCount())
	assert.Empty(t, s.Posts())
}

func TestStore_CreateFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, gw := newStore(t)
	_, err := s.Create(ctx, "Ann", "kept")
	require.NoError(t, err)

	gw.createErr = errBoom
	_, err = s.Create(ctx, "Ann", "lost")
	require.ErrorIs(t, err, errBoom)

	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "kept", s.Posts()[0].Content)
}

func TestStore_ListFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, gw := newStore(t)
	_, err := s.Create(ctx, "Ann", "one")
	require.NoError(t, err)
	before := s.Posts()

	gw.listErr = errBoom
	require.ErrorIs(t, s.List(ctx), errBoom)
	assert.Equal(t, before, s.Posts())
}

func TestStore_ListIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, "Ann", fmt.Sprintf("post %d", i))
		require.NoError(t, err)
	}

	require.NoError(t, s.List(ctx))
	first := s.Posts()
	require.NoError(t, s.List(ctx))
	assert.Equal(t, first, s.Posts())
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, gw := newStore(t)
	a, err := s.Create(ctx, "Ann", "a")
	require.NoError(t, err)
	b, err := s.Create(ctx, "Ann", "b")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	require.NoError(t, s.List(ctx))
	posts := s.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, b.ID, posts[0].ID)

	// unknown id: no-op
	require.NoError(t, s.Delete(ctx, "missing"))
	assert.Equal(t, posts, s.Posts())

	gw.deleteErr = errBoom
	require.ErrorIs(t, s.Delete(ctx, b.ID), errBoom)
	assert.Equal(t, posts, s.Posts())
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	p, err := s.Create(ctx, "Ann", "old")
	require.NoError(t, err)

	up, err := s.Update(ctx, p.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", up.Content)
	assert.Equal(t, p.CreatedAt, up.CreatedAt)
	assert.Equal(t, p.Version+1, up.Version)
	assert.True(t, up.UpdatedAt.After(p.UpdatedAt))

	require.NoError(t, s.List(ctx))
	got, ok := s.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "new", got.Content)
}

func TestStore_UpdateStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	s, gw := newStore(t)
	p, err := s.Create(ctx, "Ann", "old")
	require.NoError(t, err)

	// another client edits the post behind our back
	_, err = gw.UpdatePost(ctx, p.ID, "theirs", 0)
	require.NoError(t, err)

	_, err = s.Update(ctx, p.ID, "mine")
	require.ErrorIs(t, err, common.ErrVersionConflict)

	got, _ := s.Get(p.ID)
	assert.Equal(t, "old", got.Content)

	require.NoError(t, s.List(ctx))
	up, err := s.Update(ctx, p.ID, "mine")
	require.NoError(t, err)
	assert.Equal(t, int64(3), up.Version)
}

func TestStore_UpdateRejectsBlank(t *testing.T) {
	s, gw := newStore(t)
	_, err := s.Update(context.Background(), "p1", " ")
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Zero(t, gw.callCount())
}

func TestStore_ConcurrentCreatesAreNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "Ann", "same")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, s.Posts(), 2)
	require.NoError(t, s.List(ctx))
	require.Len(t, s.Posts(), 2)
}

func TestStore_PostsIsSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, err := s.Create(ctx, "Ann", "a")
	require.NoError(t, err)

	snap := s.Posts()
	snap[0].Content = "mutated"
	assert.Equal(t, "a", s.Posts()[0].Content)
}

func TestCanModify(t *testing.T) {
	p := models.Post{UserID: "u1", Author: "Ann"}

	assert.True(t, CanModify(p, &models.User{ID: "u1"}))
	assert.False(t, CanModify(p, &models.User{ID: "u2", Name: "Ann"}))
	assert.False(t, CanModify(p, nil))
	assert.False(t, CanModify(models.Post{}, &models.User{}))
}
