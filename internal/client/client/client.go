package client

import (
	"context"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
)

// Client is the single handle through which the client reaches the gateway:
// identity, the posts and gallery tables, and object storage uploads.
type Client interface {
	SignUp(ctx context.Context, email, password, name string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	RequestMagicLink(ctx context.Context, email string) error
	ExchangeMagicLink(ctx context.Context, token string) (*models.User, error)
	SignOut(ctx context.Context) error
	// GetSession returns the signed-in user or nil when there is none.
	GetSession(ctx context.Context) (*models.User, error)
	// OnAuthStateChange registers fn for auth notifications. Notifications
	// are delivered in order on a separate goroutine.
	OnAuthStateChange(fn func(models.AuthChange)) (unsubscribe func())

	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, author, content string) (*models.Post, error)
	UpdatePost(ctx context.Context, id, content string, version int64) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error

	ListGallery(ctx context.Context) ([]models.GalleryPost, error)
	BeginGallery(ctx context.Context, title, description string) (*models.GalleryPost, error)
	RequestImageUpload(ctx context.Context, galleryID, fileName, contentType string) (*models.UploadTicket, error)
	UploadObject(ctx context.Context, ticket *models.UploadTicket, contentType string, body []byte) error
	AttachImage(ctx context.Context, galleryID, objectName string) (*models.GalleryPost, error)
	FinalizeGallery(ctx context.Context, galleryID string) (*models.GalleryPost, error)
	DeleteGallery(ctx context.Context, galleryID string) error

	Ping(ctx context.Context) error
	Close() error
}
