package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/netx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	apiPrefix = "/api/v1"

	// healthService is the name the gateway registers with grpc.health.v1.
	healthService = "snapboard"
)

// HTTPClient talks to the gateway JSON API and probes its gRPC health
// service. It is safe for concurrent use.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	store   TokenStore
	logger  logging.Logger

	conn   *grpc.ClientConn
	health healthpb.HealthClient

	mu       sync.Mutex
	session  *models.Session
	restored bool

	// serialises token refreshes so a rotated refresh token is used once
	refreshMu sync.Mutex

	events *dispatcher
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the API at baseURL. store may be nil, in
// which case the session lives only as long as the process.
func NewHTTPClient(baseURL, healthAddr string, timeout time.Duration, store TokenStore, l logging.Logger) (*HTTPClient, error) {
	conn, err := grpc.NewClient(healthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		store:   store,
		logger:  l.With("module", "gateway_client"),
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		events:  newDispatcher(),
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// send performs one request. A 2xx body is decoded into out; for any other
// status the server's error message is returned alongside the code.
func (c *HTTPClient) send(ctx context.Context, method, path, token string, body []byte, out any) (int, string, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, rdr)
	if err != nil {
		return 0, "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AccessTokenHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, "", ctx.Err()
		}
		return 0, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return resp.StatusCode, "", nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, "", fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, "", nil
	}

	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(raw))
	}
	return resp.StatusCode, eb.Error, nil
}

// mapStatus turns a gateway answer into the sentinel callers match on.
func mapStatus(code int, msg string) error {
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w (%s)", common.ErrorValidation, msg)
	case code == http.StatusUnauthorized:
		if msg == "" || msg == ErrUnauthorized.Error() {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case code == http.StatusForbidden:
		return common.ErrorForbidden
	case code == http.StatusNotFound:
		return common.ErrorNotFound
	case code == http.StatusConflict:
		if msg == common.ErrorAlreadyExists.Error() {
			return common.ErrorAlreadyExists
		}
		return common.ErrVersionConflict
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", code, msg)
	}
}

// do sends a JSON request. Authenticated requests that fail with an expired
// access token are retried once after a refresh.
func (c *HTTPClient) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	token := ""
	if authed {
		if err := c.restore(ctx); err != nil {
			return err
		}
		token = c.accessToken()
		if token == "" {
			return ErrUnauthorized
		}
	}

	code, msg, err := c.send(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}

	if authed && code == http.StatusUnauthorized && msg == common.ErrTokenExpired.Error() {
		token, err = c.refresh(ctx, token)
		if err != nil {
			return err
		}
		code, msg, err = c.send(ctx, method, path, token, body, out)
		if err != nil {
			return err
		}
	}

	return mapStatus(code, msg)
}

func (c *HTTPClient) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return "", ErrUnauthorized
	}
	if sess.AccessToken != stale {
		// someone else already rotated the pair
		return sess.AccessToken, nil
	}

	body, err := json.Marshal(map[string]string{"refresh_token": sess.RefreshToken})
	if err != nil {
		return "", err
	}

	var pair tokenPair
	code, msg, err := c.send(ctx, http.MethodPost, "/auth/refresh", "", body, &pair)
	if err != nil {
		return "", err
	}
	if err := mapStatus(code, msg); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.logger.Info(ctx, "refresh token rejected, dropping session")
			if c.clearSession(ctx) {
				c.events.emit(models.AuthChange{Event: models.SignedOut})
			}
		}
		return "", err
	}

	updated := *sess
	updated.AccessToken = pair.AccessToken
	updated.RefreshToken = pair.RefreshToken
	c.setSession(ctx, &updated)

	user := updated.User
	c.events.emit(models.AuthChange{Event: models.TokenRefreshed, User: &user})
	return pair.AccessToken, nil
}

// restore loads a persisted session the first time it is needed.
func (c *HTTPClient) restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restored {
		return nil
	}
	if c.store != nil {
		sess, err := c.store.Load(ctx)
		if err != nil {
			return err
		}
		if c.session == nil {
			c.session = sess
		}
	}
	c.restored = true
	return nil
}

func (c *HTTPClient) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *HTTPClient) setSession(ctx context.Context, sess *models.Session) {
	c.mu.Lock()
	c.session = sess
	c.restored = true
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, sess); err != nil {
		c.logger.Warn(ctx, "failed to persist session", "error", err)
	}
}

// clearSession forgets the session and reports whether there was one.
func (c *HTTPClient) clearSession(ctx context.Context) bool {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.restored = true
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn(ctx, "failed to clear stored session", "error", err)
		}
	}
	return had
}

func (c *HTTPClient) startSession(ctx context.Context, sess *models.Session) *models.User {
	c.setSession(ctx, sess)
	user := sess.User
	c.events.emit(models.AuthChange{Event: models.SignedIn, User: &user})
	out := sess.User
	return &out
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password, name string) (*models.User, error) {
	var sess models.Session
	in := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", false, in, &sess); err != nil {
		return nil, err
	}
	return c.startSession(ctx, &sess), nil
}

func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	var sess models.Session
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", false, in, &sess); err != nil {
		return nil, err
	}
	return c.startSession(ctx, &sess), nil
}

func (c *HTTPClient) RequestMagicLink(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/magic-link", false, map[string]string{"email": email}, nil)
}

func (c *HTTPClient) ExchangeMagicLink(ctx context.Context, token string) (*models.User, error) {
	var sess models.Session
	path := "/auth/callback?" + url.Values{"token": {token}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, false, nil, &sess); err != nil {
		return nil, err
	}
	return c.startSession(ctx, &sess), nil
}

// SignOut revokes the refresh token and forgets the local session. The
// SignedOut notification follows asynchronously.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	if err := c.restore(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/signout", true, map[string]string{"refresh_token": sess.RefreshToken}, nil)
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}

	if c.clearSession(ctx) {
		c.events.emit(models.AuthChange{Event: models.SignedOut})
	}
	return nil
}

func (c *HTTPClient) GetSession(ctx context.Context) (*models.User, error) {
	if err := c.restore(ctx); err != nil {
		return nil, err
	}
	if c.accessToken() == "" {
		return nil, nil
	}

	var u models.User
	err := c.do(ctx, http.MethodGet, "/auth/session", true, nil, &u)
	if errors.Is(err, ErrUnauthorized) {
		c.clearSession(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.User = u
	}
	c.mu.Unlock()
	return &u, nil
}

func (c *HTTPClient) OnAuthStateChange(fn func(models.AuthChange)) func() {
	return c.events.subscribe(fn)
}

func (c *HTTPClient) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := c.do(ctx, http.MethodGet, "/posts", false, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *HTTPClient) CreatePost(ctx context.Context, author, content string) (*models.Post, error) {
	var p models.Post
	in := map[string]string{"author": author, "content": content}
	if err := c.do(ctx, http.MethodPost, "/posts", true, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) UpdatePost(ctx context.Context, id, content string, version int64) (*models.Post, error) {
	var p models.Post
	in := map[string]any{"content": content, "version": version}
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), true, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), true, nil, nil)
}

func (c *HTTPClient) ListGallery(ctx context.Context) ([]models.GalleryPost, error) {
	items := []models.GalleryPost{}
	if err := c.do(ctx, http.MethodGet, "/gallery", false, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *HTTPClient) BeginGallery(ctx context.Context, title, description string) (*models.GalleryPost, error) {
	var g models.GalleryPost
	in := map[string]string{"title": title, "description": description}
	if err := c.do(ctx, http.MethodPost, "/gallery", true, in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) RequestImageUpload(ctx context.Context, galleryID, fileName, contentType string) (*models.UploadTicket, error) {
	var t models.UploadTicket
	in := map[string]string{"file_name": fileName, "content_type": contentType}
	if err := c.do(ctx, http.MethodPost, "/gallery/"+url.PathEscape(galleryID)+"/uploads", true, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UploadObject PUTs the bytes straight to object storage using the ticket's
// presigned URL. The gateway is not involved.
func (c *HTTPClient) UploadObject(ctx context.Context, ticket *models.UploadTicket, contentType string, body []byte) error {
	if err := netx.UploadToPresignedURL(ctx, c.hc, ticket.UploadURL, contentType, body); err != nil {
		return fmt.Errorf("upload %s: %w", ticket.ObjectName, err)
	}
	return nil
}

func (c *HTTPClient) AttachImage(ctx context.Context, galleryID, objectName string) (*models.GalleryPost, error) {
	var g models.GalleryPost
	in := map[string]string{"object_name": objectName}
	if err := c.do(ctx, http.MethodPost, "/gallery/"+url.PathEscape(galleryID)+"/images", true, in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) FinalizeGallery(ctx context.Context, galleryID string) (*models.GalleryPost, error) {
	var g models.GalleryPost
	if err := c.do(ctx, http.MethodPost, "/gallery/"+url.PathEscape(galleryID)+"/finalize", true, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) DeleteGallery(ctx context.Context, galleryID string) error {
	return c.do(ctx, http.MethodDelete, "/gallery/"+url.PathEscape(galleryID), true, nil, nil)
}

// Ping asks the gateway's health service whether it is serving.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
	if err != nil {
		return mapRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func mapRPCError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// Close stops event delivery and releases the health connection.
func (c *HTTPClient) Close() error {
	c.events.close()
	return c.conn.Close()
}
