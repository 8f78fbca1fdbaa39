package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/snapboard/internal/client/models"
	"github.com/dmitrijs2005/snapboard/internal/client/repositories/metadata"
)

const (
	keyAccessToken  = "session.access_token"
	keyRefreshToken = "session.refresh_token"
	keyUser         = "session.user"
)

// TokenStore persists the current session between runs.
type TokenStore interface {
	// Load returns nil when nothing is stored.
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}

// MetadataTokenStore keeps the session in the local metadata table.
type MetadataTokenStore struct {
	repo metadata.Repository
}

func NewMetadataTokenStore(repo metadata.Repository) *MetadataTokenStore {
	return &MetadataTokenStore{repo: repo}
}

func (s *MetadataTokenStore) Load(ctx context.Context) (*models.Session, error) {
	values, err := s.repo.List(ctx, "session.")
	if err != nil {
		return nil, err
	}
	access, refresh, user := values[keyAccessToken], values[keyRefreshToken], values[keyUser]
	if refresh == "" || user == "" {
		return nil, nil
	}

	sess := &models.Session{AccessToken: access, RefreshToken: refresh}
	if err := json.Unmarshal([]byte(user), &sess.User); err != nil {
		return nil, fmt.Errorf("stored session is corrupt: %w", err)
	}
	return sess, nil
}

func (s *MetadataTokenStore) Save(ctx context.Context, sess *models.Session) error {
	user, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, keyAccessToken, sess.AccessToken); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, keyRefreshToken, sess.RefreshToken); err != nil {
		return err
	}
	return s.repo.Set(ctx, keyUser, string(user))
}

func (s *MetadataTokenStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, keyAccessToken, keyRefreshToken, keyUser)
}
