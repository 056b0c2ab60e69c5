package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/utils"
)

type CreateProjectRequest struct {
	Name       string `json:"name" binding:"required"`
	Department string `json:"department"`
}

// UpdateProjectRequest carries only the fields the caller wants changed;
// nil pointers leave the stored value alone.
type UpdateProjectRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
	Status     *string `json:"status"`
}

type ProjectResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	OwnerID    uint      `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func projectResponse(project models.Project) ProjectResponse {
	return ProjectResponse{
		ID:         project.ID,
		Name:       project.Name,
		Department: project.Department,
		Status:     project.Status,
		OwnerID:    project.OwnerID,
		CreatedAt:  project.CreatedAt,
		UpdatedAt:  project.UpdatedAt,
	}
}

// fetchOwnedProject loads a project scoped to its owner. Projects of other
// users are indistinguishable from missing ones.
func fetchOwnedProject(projectID uint, ownerID uint) (models.Project, error) {
	var project models.Project

	err := db.DB.Where("id = ? AND owner_id = ?", projectID, ownerID).First(&project).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project, apperrors.NewResourceNotFoundError("Project", projectID)
	}

	if err != nil {
		log.Printf("Failed to retrieve project %d: %v", projectID, err)
		return project, apperrors.NewDatabaseError("Failed to retrieve project", "get project", nil)
	}

	return project, nil
}

func validateProjectName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return "", apperrors.NewValidationError("Project name cannot be empty", "name", nil)
	}

	if utf8.RuneCountInString(trimmed) > 255 {
		return "", apperrors.NewValidationError("Project name cannot exceed 255 characters", "name", nil)
	}

	return trimmed, nil
}

func CreateProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body CreateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("Project name cannot be empty", "name", nil))
		return
	}

	name, err := validateProjectName(body.Name)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	project := models.Project{
		Name:       name,
		Department: strings.TrimSpace(body.Department),
		Status:     models.ProjectStatusDraft,
		OwnerID:    userID,
	}

	if err := db.DB.Create(&project).Error; err != nil {
		log.Printf("Failed to create project: %v", err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to create project", "create project", nil))
		return
	}

	log.Printf("Created project %d - %s", project.ID, project.Name)
	ctx.JSON(http.StatusCreated, projectResponse(project))
}

// ListProjects returns the caller's projects, most recently updated first.
func ListProjects(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var projects []models.Project

	if err := db.DB.Where("owner_id = ?", userID).Order("updated_at desc").Find(&projects).Error; err != nil {
		log.Printf("Failed to list projects: %v", err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to retrieve projects", "list projects", nil))
		return
	}

	response := make([]ProjectResponse, 0, len(projects))

	for _, project := range projects {
		response = append(response, projectResponse(project))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetProject(ctx *gin.Context) {
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

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, projectResponse(project))
}

// UpdateProject applies a partial update; only fields present in the body
// change.
func UpdateProject(ctx *gin.Context) {
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

	var body UpdateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("Invalid request body", "", nil))
		return
	}

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if body.Name != nil {
		name, err := validateProjectName(*body.Name)

		if err != nil {
			apperrors.Respond(ctx, err)
			return
		}

		project.Name = name
	}

	if body.Department != nil {
		project.Department = strings.TrimSpace(*body.Department)
	}

	if body.Status != nil {
		status := strings.TrimSpace(*body.Status)

		if utf8.RuneCountInString(status) > 50 {
			apperrors.Respond(ctx, apperrors.NewValidationError("Project status cannot exceed 50 characters", "status", nil))
			return
		}

		project.Status = status
	}

	if err := db.DB.Save(&project).Error; err != nil {
		log.Printf("Failed to update project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to update project", "update project", nil))
		return
	}

	log.Printf("Updated project %d - %s", project.ID, project.Name)
	ctx.JSON(http.StatusOK, projectResponse(project))
}

// DeleteProject removes a project together with its hearing logs, flow
// nodes and edges.
func DeleteProject(ctx *gin.Context) {
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

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := db.DB.Select("HearingLogs", "FlowNodes", "FlowEdges").Delete(&project).Error; err != nil {
		log.Printf("Failed to delete project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to delete project", "delete project", nil))
		return
	}

	log.Printf("Deleted project %d - %s", project.ID, project.Name)
	ctx.Status(http.StatusNoContent)
}
