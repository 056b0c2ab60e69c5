package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

type LoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type RegisterRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" binding:"omitempty,email"`
}

func userResponse(user models.User) types.UserResponse {
	return types.UserResponse{
		ID:          user.ID,
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		IsActive:    user.IsActive,
	}
}

// Login resolves a user by identifier, creating the account on first
// contact. There is no credential beyond the identifier itself.
func Login(ctx *gin.Context) {
	var body LoginRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("user_id is required", "user_id", nil))
		return
	}

	userID := strings.TrimSpace(body.UserID)

	if userID == "" {
		apperrors.Respond(ctx, apperrors.NewValidationError("user_id is required", "user_id", nil))
		return
	}

	var user models.User

	err := db.DB.Where("user_id = ?", userID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			UserID:      userID,
			DisplayName: userID,
			IsActive:    true,
		}

		if err := db.DB.Create(&user).Error; err != nil {
			log.Printf("Failed to create user %s: %v", userID, err)
			apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to create user", "create user", nil))
			return
		}

		log.Printf("Created user %s on first login", userID)
	} else if err != nil {
		log.Printf("Failed to look up user %s: %v", userID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to look up user", "find user", nil))
		return
	}

	ctx.JSON(http.StatusOK, userResponse(user))
}

// Register creates a user with an optional display name and email. Unlike
// Login it refuses identifiers that are already taken.
func Register(ctx *gin.Context) {
	var body RegisterRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("user_id is required", "user_id", nil))
		return
	}

	userID := strings.TrimSpace(body.UserID)

	if userID == "" {
		apperrors.Respond(ctx, apperrors.NewValidationError("user_id is required", "user_id", nil))
		return
	}

	var existing models.User

	err := db.DB.Where("user_id = ?", userID).First(&existing).Error

	if err == nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("User ID already exists", "user_id", nil))
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to check existing user %s: %v", userID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to look up user", "find user", nil))
		return
	}

	displayName := strings.TrimSpace(body.DisplayName)

	if displayName == "" {
		displayName = userID
	}

	user := models.User{
		UserID:      userID,
		DisplayName: displayName,
		Email:       strings.ToLower(strings.TrimSpace(body.Email)),
		IsActive:    true,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		log.Printf("Failed to register user %s: %v", userID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to create user", "create user", nil))
		return
	}

	ctx.JSON(http.StatusCreated, userResponse(user))
}

// GetUser returns the account behind a user identifier.
func GetUser(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	var user models.User

	if err := db.DB.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apperrors.Respond(ctx, apperrors.NewResourceNotFoundError("User", userID))
			return
		}
		log.Printf("Failed to look up user %s: %v", userID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to look up user", "find user", nil))
		return
	}

	ctx.JSON(http.StatusOK, userResponse(user))
}

// ValidateUser reports whether an identifier belongs to a known account.
func ValidateUser(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	var user models.User

	if err := db.DB.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apperrors.Respond(ctx, apperrors.NewResourceNotFoundError("User", userID))
			return
		}
		log.Printf("Failed to validate user %s: %v", userID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to look up user", "find user", nil))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"user_id":      user.UserID,
		"display_name": user.DisplayName,
	})
}
