package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// AuthenticatedUser is the resolved caller stored on the request context.
type AuthenticatedUser struct {
	ID          uint   `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// AuthMiddleware resolves the caller from the X-User-ID header. A missing
// header, an unknown identifier or a deactivated account rejects the
// request with 401.
func AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetHeader(types.UserIDHeader)

		if userID == "" {
			apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "X-User-ID header is required")
			return
		}

		var user models.User

		if err := db.DB.Where("user_id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "Unknown user")
				return
			}
			apperrors.AbortWithStatus(ctx, http.StatusInternalServerError, "Failed to resolve user")
			return
		}

		if !user.IsActive {
			apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User account is deactivated")
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:          user.ID,
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
		})
		ctx.Next()
	}
}
