// Package services contains server-side business logic. This file implements
// UserService: password and magic-link sign-in, JWT access tokens and
// server-stored refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/cryptox"
	"github.com/dmitrijs2005/snapboard/internal/dbx"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/server/auth"
	"github.com/dmitrijs2005/snapboard/internal/server/config"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/repomanager"
)

const magicLinkTokenLength = 40

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is the result of any successful sign-in.
type Session struct {
	User   *models.User
	Tokens *TokenPair
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	magicLinkValidityDuration    time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		logger:                       logger.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		magicLinkValidityDuration:    cfg.MagicLinkValidityDuration,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: malformed email", common.ErrorValidation)
	}
	return email, nil
}

// SignUp creates an account with a password and signs it in.
func (s *UserService) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrorValidation)
	}

	hash, err := auth.HashPassword([]byte(password))
	if err != nil {
		return nil, common.ErrorInternal
	}

	var session *Session
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Email:        email,
			Name:         strings.TrimSpace(name),
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		pair, err := s.generateTokenPair(ctx, user.ID, tx)
		if err != nil {
			return err
		}
		session = &Session{User: user, Tokens: pair}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) || errors.Is(err, common.ErrorInternal) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user signed up", "user_id", session.User.ID)
	return session, nil
}

// SignIn checks the password and issues a token pair. Unknown accounts and
// passwordless accounts both yield ErrorUnauthorized.
func (s *UserService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if len(user.PasswordHash) == 0 {
		return nil, common.ErrorUnauthorized
	}

	ok, err := auth.CheckPassword(user.PasswordHash, []byte(password))
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.generateTokenPair(ctx, user.ID, s.db)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, cryptox.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, cryptox.HashToken(refreshToken)); err != nil {
			// another rotation consumed the token after Find
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// SignOut revokes a refresh token. Unknown tokens are ignored.
func (s *UserService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.repomanager.RefreshTokens(s.db).Delete(ctx, cryptox.HashToken(refreshToken))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// RequestMagicLink stores a single-use sign-in token for email and returns
// it. Delivery is up to the caller.
func (s *UserService) RequestMagicLink(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	token, err := common.MakeRandToken(magicLinkTokenLength)
	if err != nil {
		return "", common.ErrorInternal
	}
	if err := s.repomanager.MagicLinks(s.db).Create(ctx, email, cryptox.HashToken(token), s.magicLinkValidityDuration); err != nil {
		return "", fmt.Errorf("error creating magic link: %w", err)
	}
	return token, nil
}

// ExchangeMagicLink consumes token and signs its owner in, creating the
// account on first use. Unknown or reused tokens yield ErrInvalidToken.
func (s *UserService) ExchangeMagicLink(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	var session *Session
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		link, err := s.repomanager.MagicLinks(tx).Consume(ctx, cryptox.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if link.ExpiresAt.Before(time.Now()) {
			return common.ErrMagicLinkExpired
		}

		users := s.repomanager.Users(tx)
		user, err := users.GetByEmail(ctx, link.Email)
		if errors.Is(err, common.ErrorNotFound) {
			user, err = users.Create(ctx, &models.User{Email: link.Email})
		}
		if err != nil {
			return err
		}

		pair, err := s.generateTokenPair(ctx, user.ID, tx)
		if err != nil {
			return err
		}
		session = &Session{User: user, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// PurgeExpired drops expired refresh tokens and magic links.
func (s *UserService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n1, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	n2, err := s.repomanager.MagicLinks(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return n1, err
	}
	return n1 + n2, nil
}

// UserIDFromAccessToken validates an access token minted by this service.
func (s *UserService) UserIDFromAccessToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, cryptox.HashToken(refresh), s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
