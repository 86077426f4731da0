package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// UserContextKey holds the authenticated model.User on the gin context
const UserContextKey = "auction.user"

var (
	titlePolicy       = bluemonday.StrictPolicy()
	descriptionPolicy = bluemonday.UGCPolicy()
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// HandleServiceError maps err to a status, writes the error envelope and logs it
func HandleServiceError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	logServiceError(handlerName, status, err, fields)
}

// AbortWithServiceError is HandleServiceError for middleware: the rest of
// the chain is skipped
func AbortWithServiceError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONAbort(c, status, fmt.Errorf("%s: %w", message, err), message)
	logServiceError(handlerName, status, err, fields)
}

func logServiceError(handlerName string, status int, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrTransientConflict):
		return http.StatusServiceUnavailable, "auction busy, retry later"
	case errors.Is(err, biddingerrors.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, biddingerrors.ErrItemNotFound):
		return http.StatusNotFound, "item not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, biddingerrors.ErrItemClosed):
		return http.StatusGone, "auction is closed"
	case errors.Is(err, biddingerrors.ErrAlreadyClosed):
		return http.StatusConflict, "auction already closed"
	case errors.Is(err, biddingerrors.ErrNotOwner):
		return http.StatusForbidden, "only the owner can close this auction before its close time"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrNonPositiveAmount):
		return http.StatusBadRequest, "bid amount must be positive"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidCreationParams):
		return http.StatusBadRequest, "invalid item details"
	case errors.Is(err, biddingerrors.ErrInvalidUsername):
		return http.StatusBadRequest, "invalid username"
	case errors.Is(err, biddingerrors.ErrUserExists):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for item"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no items found for user"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// CurrentUser returns the user set by the identity middleware
func CurrentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return model.User{}, false
	}
	user, ok := v.(model.User)
	return user, ok
}

// SanitizeTitle strips all markup from an item title
func SanitizeTitle(s string) string {
	return strings.TrimSpace(titlePolicy.Sanitize(s))
}

// SanitizeDescription keeps safe user-generated markup
func SanitizeDescription(s string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(s))
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
