package httpapi

import (
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/server/models"
	"github.com/dmitrijs2005/snapboard/internal/server/services"
	"github.com/gin-gonic/gin"
)

const callbackPath = "/api/v1/auth/callback"

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

func toSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{
		User:         toUserResponse(s.User),
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
	}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,notblank"`
	Name     string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type magicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type signOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := h.users.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// RequestMagicLink issues a sign-in link. There is no mailer: the link is
// written to the server log.
func (h *Handler) RequestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := h.users.RequestMagicLink(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	link := callbackPath + "?" + url.Values{"token": {token}}.Encode()
	h.logger.Info(c.Request.Context(), "magic link issued", "email", req.Email, "link", link)
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// AuthCallback exchanges a magic-link token for a session. Every failure is
// reported with the same flag so the caller cannot probe tokens.
func (h *Handler) AuthCallback(c *gin.Context) {
	sess, err := h.users.ExchangeMagicLink(c.Request.Context(), c.Query("token"))
	if err != nil {
		code, _ := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.Error(c.Request.Context(), "auth callback failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.AuthCallbackFailed})
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) SignOut(c *gin.Context) {
	var req signOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Session(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		// a valid token for a deleted account
		if code, _ := statusFor(err); code == http.StatusNotFound {
			err = common.ErrorUnauthorized
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}
