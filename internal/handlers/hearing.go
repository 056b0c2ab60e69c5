package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/utils"
)

type HearingLogRequest struct {
	Content string `json:"content" binding:"required"`
}

// fetchOwnedHearingLog loads a hearing log and checks that its project
// belongs to the caller. Logs of other users look missing.
func fetchOwnedHearingLog(hearingID uint, ownerID uint) (models.HearingLog, error) {
	var hearingLog models.HearingLog

	err := db.DB.First(&hearingLog, hearingID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return hearingLog, apperrors.NewResourceNotFoundError("Hearing log", hearingID)
	}

	if err != nil {
		log.Printf("Failed to retrieve hearing log %d: %v", hearingID, err)
		return hearingLog, apperrors.NewDatabaseError("Failed to retrieve hearing log", "get hearing log", nil)
	}

	if _, err := fetchOwnedProject(hearingLog.ProjectID, ownerID); err != nil {
		return hearingLog, apperrors.NewResourceNotFoundError("Hearing log", hearingID)
	}

	return hearingLog, nil
}

// GetHearingLogs returns a project's hearing logs oldest first.
func GetHearingLogs(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "project_id", nil))
		return
	}

	if _, err := fetchOwnedProject(uint(projectID), userID); err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var hearingLogs []models.HearingLog

	if err := db.DB.Where("project_id = ?", projectID).Order("created_at asc").Find(&hearingLogs).Error; err != nil {
		log.Printf("Failed to retrieve hearing logs for project %d: %v", projectID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to retrieve hearing logs", "list hearing logs", nil))
		return
	}

	ctx.JSON(http.StatusOK, hearingLogs)
}

// AddHearingLog appends interview content to a project. The project's
// updated_at is set to the log's creation time so project lists surface
// recently discussed work first.
func AddHearingLog(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "project_id", nil))
		return
	}

	var body HearingLogRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("Hearing log content is required", "content", nil))
		return
	}

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	hearingLog := models.HearingLog{
		ProjectID: project.ID,
		Content:   body.Content,
	}

	if err := db.DB.Create(&hearingLog).Error; err != nil {
		log.Printf("Failed to create hearing log for project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to create hearing log", "create hearing log", nil))
		return
	}

	if err := db.DB.Model(&project).Update("updated_at", hearingLog.CreatedAt).Error; err != nil {
		log.Printf("Failed to touch project %d after hearing log write: %v", project.ID, err)
	}

	log.Printf("Created hearing log %d for project %d", hearingLog.ID, project.ID)
	ctx.JSON(http.StatusCreated, hearingLog)
}

// UpdateHearingLog replaces a log's content and touches the project.
func UpdateHearingLog(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	hearingID, err := utils.GetHearingID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "hearing_id", nil))
		return
	}

	var body HearingLogRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("Hearing log content is required", "content", nil))
		return
	}

	hearingLog, err := fetchOwnedHearingLog(uint(hearingID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	hearingLog.Content = body.Content

	if err := db.DB.Save(&hearingLog).Error; err != nil {
		log.Printf("Failed to update hearing log %d: %v", hearingLog.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to update hearing log", "update hearing log", nil))
		return
	}

	if err := db.DB.Model(&models.Project{}).Where("id = ?", hearingLog.ProjectID).
		Update("updated_at", time.Now()).Error; err != nil {
		log.Printf("Failed to touch project %d after hearing log update: %v", hearingLog.ProjectID, err)
	}

	log.Printf("Updated hearing log %d", hearingLog.ID)
	ctx.JSON(http.StatusOK, hearingLog)
}

// DeleteHearingLog removes a log and touches the project.
func DeleteHearingLog(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	hearingID, err := utils.GetHearingID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "hearing_id", nil))
		return
	}

	hearingLog, err := fetchOwnedHearingLog(uint(hearingID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := db.DB.Delete(&hearingLog).Error; err != nil {
		log.Printf("Failed to delete hearing log %d: %v", hearingLog.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to delete hearing log", "delete hearing log", nil))
		return
	}

	if err := db.DB.Model(&models.Project{}).Where("id = ?", hearingLog.ProjectID).
		Update("updated_at", time.Now()).Error; err != nil {
		log.Printf("Failed to touch project %d after hearing log delete: %v", hearingLog.ProjectID, err)
	}

	log.Printf("Deleted hearing log %d", hearingLog.ID)
	ctx.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Hearing log %d deleted successfully", hearingLog.ID)})
}
