package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

type tokenVerifier interface {
	UserIDFromAccessToken(token string) (string, error)
}

func UserIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Auth requires a valid bearer access token. An expired token is reported
// as "token expired" so clients know to refresh.
func Auth(v tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader(common.AccessTokenHeaderName))
		if len(h) <= len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.ErrorUnauthorized.Error()})
			return
		}

		userID, err := v.UserIDFromAccessToken(strings.TrimSpace(h[len(common.BearerPrefix):]))
		if err != nil {
			msg := common.ErrorUnauthorized.Error()
			if errors.Is(err, common.ErrTokenExpired) {
				msg = common.ErrTokenExpired.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequestLogger writes one line per request through the application logger.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if uid := UserIDFromContext(c); uid != "" {
			args = append(args, "user_id", uid)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn(c.Request.Context(), "request failed", args...)
			return
		}
		logger.Debug(c.Request.Context(), "request", args...)
	}
}
