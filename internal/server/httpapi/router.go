// Package httpapi exposes the gateway over JSON/HTTP using gin.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "snapboard"

type AuthService interface {
	SignUp(ctx context.Context, email, password, name string) (*services.Session, error)
	SignIn(ctx context.Context, email, password string) (*services.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
	RequestMagicLink(ctx context.Context, email string) (string, error)
	ExchangeMagicLink(ctx context.Context, token string) (*services.Session, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UserIDFromAccessToken(token string) (string, error)
}

type PostService interface {
	List(ctx context.Context) ([]*models.Post, error)
	Create(ctx context.Context, userID, author, content string) (*models.Post, error)
	Update(ctx context.Context, userID, id, content string, version int64) (*models.Post, error)
	Delete(ctx context.Context, userID, id string) error
}

type GalleryService interface {
	List(ctx context.Context) ([]*models.GalleryPost, error)
	Begin(ctx context.Context, userID, title, description string) (*models.GalleryPost, error)
	RequestUpload(ctx context.Context, userID, galleryID, fileName, contentType string) (*models.UploadTicket, error)
	Attach(ctx context.Context, userID, galleryID, objectName string) (*models.GalleryPost, error)
	Finalize(ctx context.Context, userID, galleryID string) (*models.GalleryPost, error)
	Delete(ctx context.Context, userID, galleryID string) error
}

// Handler carries the services every route needs.
type Handler struct {
	users   AuthService
	posts   PostService
	gallery GalleryService
	logger  logging.Logger
}

func NewHandler(users AuthService, posts PostService, gallery GalleryService, logger logging.Logger) *Handler {
	return &Handler{users: users, posts: posts, gallery: gallery, logger: logger.With("module", "http")}
}

var registerOnce sync.Once

// registerValidators adds the tags used in request structs to gin's
// validator. The validator engine is process-wide, hence the Once.
// A failed registration would leave every notblank field unchecked, so it
// panics at startup.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := registerTags(v, customTags); err != nil {
				panic(err)
			}
		}
	})
}

var customTags = map[string]validator.Func{
	"notblank": validators.NotBlank,
}

func registerTags(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q validator: %w", tag, err)
		}
	}
	return nil
}

func NewRouter(h *Handler) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(RequestLogger(h.logger))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	requireAuth := Auth(h.users)

	a := v1.Group("/auth")
	{
		a.POST("/signup", h.SignUp)
		a.POST("/signin", h.SignIn)
		a.POST("/refresh", h.Refresh)
		a.POST("/magic-link", h.RequestMagicLink)
		a.GET("/callback", h.AuthCallback)
		a.POST("/signout", requireAuth, h.SignOut)
		a.GET("/session", requireAuth, h.Session)
	}

	p := v1.Group("/posts")
	{
		p.GET("", h.ListPosts)
		p.POST("", requireAuth, h.CreatePost)
		p.PUT("/:id", requireAuth, h.UpdatePost)
		p.DELETE("/:id", requireAuth, h.DeletePost)
	}

	g := v1.Group("/gallery")
	{
		g.GET("", h.ListGallery)
		g.POST("", requireAuth, h.BeginGallery)
		g.POST("/:id/uploads", requireAuth, h.RequestUpload)
		g.POST("/:id/images", requireAuth, h.AttachImage)
		g.POST("/:id/finalize", requireAuth, h.FinalizeGallery)
		g.DELETE("/:id", requireAuth, h.DeleteGallery)
	}

	return r
}
