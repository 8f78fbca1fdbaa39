package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes and the message that is
// safe to show the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrMagicLinkExpired):
		return http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, common.ErrorForbidden.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.ErrorNotFound.Error()
	case errors.Is(err, common.ErrVersionConflict):
		return http.StatusConflict, common.ErrVersionConflict.Error()
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, common.ErrorAlreadyExists.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request error", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": common.ErrorValidation.Error() + ": " + err.Error()})
}
