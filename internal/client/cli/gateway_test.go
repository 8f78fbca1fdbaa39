package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/client/client"
	"github.com/dmitrijs2005/snapboard/internal/client/config"
	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory gateway. Auth notifications are delivered
// synchronously except for SignOut, which notifies from a goroutine the way
// the real client does.
type fakeGateway struct {
	mu        sync.Mutex
	passwords map[string]string
	users     map[string]models.User
	current   *models.User
	listeners map[int]func(models.AuthChange)
	nextID    int

	posts   []models.Post
	gallery []models.GalleryPost
	uploads map[string][]byte

	pingErr     error
	magicToken  string
	failUploads int
	calls       []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		passwords:  map[string]string{},
		users:      map[string]models.User{},
		listeners:  map[int]func(models.AuthChange){},
		uploads:    map[string][]byte{},
		magicToken: "magic-token",
	}
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeGateway) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (f *fakeGateway) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%04d-0000-0000", prefix, f.nextID)
}

func (f *fakeGateway) addUser(email, password, name string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{ID: f.id("u"), Email: email, Name: name}
	f.users[email] = u
	f.passwords[email] = password
	return u
}

func (f *fakeGateway) emit(ch models.AuthChange) {
	f.mu.Lock()
	ls := make([]func(models.AuthChange), 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(ch)
	}
}

func (f *fakeGateway) signIn(u models.User) *models.User {
	f.mu.Lock()
	f.current = &u
	f.mu.Unlock()
	cp := u
	f.emit(models.AuthChange{Event: models.SignedIn, User: &cp})
	return &u
}

func (f *fakeGateway) SignUp(_ context.Context, email, password, name string) (*models.User, error) {
	f.record("SignUp")
	f.mu.Lock()
	_, exists := f.users[email]
	f.mu.Unlock()
	if exists {
		return nil, common.ErrorAlreadyExists
	}
	return f.signIn(f.addUser(email, password, name)), nil
}

func (f *fakeGateway) SignIn(_ context.Context, email, password string) (*models.User, error) {
	f.record("SignIn")
	f.mu.Lock()
	u, ok := f.users[email]
	good := ok && f.passwords[email] == password
	f.mu.Unlock()
	if !good {
		return nil, client.ErrUnauthorized
	}
	return f.signIn(u), nil
}

func (f *fakeGateway) RequestMagicLink(_ context.Context, email string) error {
	f.record("RequestMagicLink")
	f.mu.Lock()
	_, ok := f.users[email]
	f.mu.Unlock()
	if !ok {
		f.addUser(email, "", "")
	}
	return nil
}

func (f *fakeGateway) ExchangeMagicLink(_ context.Context, token string) (*models.User, error) {
	f.record("ExchangeMagicLink")
	if token != f.magicToken {
		return nil, fmt.Errorf("%w: %s", client.ErrUnauthorized, common.AuthCallbackFailed)
	}
	f.mu.Lock()
	var u models.User
	for _, x := range f.users {
		u = x
	}
	f.mu.Unlock()
	return f.signIn(u), nil
}

func (f *fakeGateway) SignOut(context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	go f.emit(models.AuthChange{Event: models.SignedOut})
	return nil
}

func (f *fakeGateway) GetSession(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	cp := *f.current
	return &cp, nil
}

func (f *fakeGateway) OnAuthStateChange(fn func(models.AuthChange)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeGateway) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeGateway) user() (models.User, error) {
	if f.current == nil {
		return models.User{}, client.ErrUnauthorized
	}
	return *f.current, nil
}

func (f *fakeGateway) ListPosts(context.Context) ([]models.Post, error) {
	f.record("ListPosts")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Post(nil), f.posts...), nil
}

func (f *fakeGateway) CreatePost(_ context.Context, author, content string) (*models.Post, error) {
	f.record("CreatePost")
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.user()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	p := models.Post{ID: f.id("p"), UserID: u.ID, Author: author, Content: content, Version: 1, CreatedAt: now, UpdatedAt: now}
	f.posts = append([]models.Post{p}, f.posts...)
	return &p, nil
}

func (f *fakeGateway) UpdatePost(_ context.Context, id, content string, version int64) (*models.Post, error) {
	f.record("UpdatePost")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts {
		if p.ID != id {
			continue
		}
		if version != 0 && version != p.Version {
			return nil, common.ErrVersionConflict
		}
		p.Content = content
		p.Version++
		p.UpdatedAt = time.Now()
		f.posts[i] = p
		return &p, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeGateway) DeletePost(_ context.Context, id string) error {
	f.record("DeletePost")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.posts[:0]
	for _, p := range f.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.posts = kept
	return nil
}

func (f *fakeGateway) ListGallery(context.Context) ([]models.GalleryPost, error) {
	f.record("ListGallery")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.GalleryPost, 0, len(f.gallery))
	for _, g := range f.gallery {
		if g.Status == models.GalleryPublished {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGateway) BeginGallery(_ context.Context, title, description string) (*models.GalleryPost, error) {
	f.record("BeginGallery")
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.user()
	if err != nil {
		return nil, err
	}
	g := models.GalleryPost{ID: f.id("g"), UserID: u.ID, Author: u.DisplayName(), Title: title, Description: description, Status: models.GalleryPending, CreatedAt: time.Now()}
	f.gallery = append([]models.GalleryPost{g}, f.gallery...)
	return &g, nil
}

func (f *fakeGateway) RequestImageUpload(_ context.Context, galleryID, fileName, _ string) (*models.UploadTicket, error) {
	f.record("RequestImageUpload")
	name := fmt.Sprintf("%d-abc%s", time.Now().UnixMilli(), fileName[strings.LastIndexByte(fileName, '.'):])
	return &models.UploadTicket{ObjectName: name, UploadURL: "http://storage/" + name, PublicURL: "http://cdn/" + name}, nil
}

func (f *fakeGateway) UploadObject(_ context.Context, ticket *models.UploadTicket, _ string, body []byte) error {
	f.record("UploadObject")
	f.mu.Lock()
	if f.failUploads > 0 {
		f.failUploads--
		f.mu.Unlock()
		return client.ErrUnavailable
	}
	f.uploads[ticket.ObjectName] = body
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) AttachImage(_ context.Context, galleryID, objectName string) (*models.GalleryPost, error) {
	f.record("AttachImage")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.gallery {
		if f.gallery[i].ID == galleryID {
			f.gallery[i].Images = append(f.gallery[i].Images, "http://cdn/"+objectName)
			g := f.gallery[i]
			return &g, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeGateway) FinalizeGallery(_ context.Context, galleryID string) (*models.GalleryPost, error) {
	f.record("FinalizeGallery")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.gallery {
		if f.gallery[i].ID == galleryID {
			f.gallery[i].Status = models.GalleryPublished
			g := f.gallery[i]
			return &g, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeGateway) DeleteGallery(_ context.Context, galleryID string) error {
	f.record("DeleteGallery")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.gallery[:0]
	for _, g := range f.gallery {
		if g.ID != galleryID {
			kept = append(kept, g)
		}
	}
	f.gallery = kept
	return nil
}

// newTestApp builds an App over fake with the given stdin and a started
// session mirror.
func newTestApp(t *testing.T, fake *fakeGateway, input string) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	a := newApp(cfg, fake, logging.Nop{}, strings.NewReader(input), out)
	require.NoError(t, a.mirror.Start(context.Background()))
	t.Cleanup(a.Close)
	return a, out
}

// syncBuffer is a bytes.Buffer safe for the session watcher goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubPassword makes getPassword return pw for the duration of the test.
func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}
