package server

import (
	"context"
	"errors"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the id of an already-authenticated user
const UserIDHeader = "X-User-ID"

// UserLookup resolves the caller's identity
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// IdentityMiddleware requires X-User-ID to name a registered user and stores
// that user on the context for handlers
func IdentityMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			helpers.AbortWithServiceError(c, "IdentityMiddleware", biddingerrors.ErrUnauthenticated, map[string]any{
				"path": c.Request.URL.Path,
			})
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, biddingerrors.ErrUserNotFound) {
				err = errors.Join(biddingerrors.ErrUnauthenticated, err)
			}
			helpers.AbortWithServiceError(c, "IdentityMiddleware", err, map[string]any{
				"user_id": userID,
				"path":    c.Request.URL.Path,
			})
			return
		}

		c.Set(helpers.UserContextKey, user)
		c.Next()
	}
}
