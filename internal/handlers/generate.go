package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/services"
	"github.com/flowscribe-dev/flowscribe/internal/utils"
)

type IncrementalGenerateRequest struct {
	NewText string `json:"new_text" binding:"required"`
}

func projectHearingContents(projectID uint) ([]string, error) {
	var hearingLogs []models.HearingLog

	err := db.DB.Where("project_id = ?", projectID).Order("created_at asc").Find(&hearingLogs).Error

	if err != nil {
		log.Printf("Failed to retrieve hearing logs for project %d: %v", projectID, err)
		return nil, apperrors.NewDatabaseError("Failed to retrieve hearing logs", "list hearing logs", nil)
	}

	contents := make([]string, 0, len(hearingLogs))

	for _, hearingLog := range hearingLogs {
		contents = append(contents, hearingLog.Content)
	}

	return contents, nil
}

// GenerateFlow replaces a project's flow with one generated from its
// hearing logs. The undo slot is cleared afterwards: a full generation is
// not undoable, only node-level edits are.
func (h *FlowHandler) GenerateFlow(ctx *gin.Context) {
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

	contents, err := projectHearingContents(project.ID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if len(contents) == 0 {
		apperrors.Respond(ctx, apperrors.NewValidationError(
			"No hearing logs found for this project. Add hearing content before generating flow.", "", nil))
		return
	}

	flow, err := h.generator.GenerateBusinessFlow(ctx.Request.Context(), contents)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	nodes, edges, err := services.ReplaceProjectFlow(db.DB, project.ID, flow)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := h.undoStore.Clear(project.ID); err != nil {
		log.Printf("Failed to clear undo slot for project %d: %v", project.ID, err)
	}

	log.Printf("Generated %d flow nodes and %d edges for project %d", len(nodes), len(edges), project.ID)
	BroadcastFlowUpdated(project.ID, "flow_generated")
	ctx.JSON(http.StatusOK, gin.H{
		"actors":     flow.Actors,
		"steps":      flow.Steps,
		"flow_nodes": nodes,
		"edges":      edges,
	})
}

// GenerateIncrementalFlow folds new hearing content into the existing flow
// instead of regenerating it from scratch. The returned operations describe
// what the model changed.
func (h *FlowHandler) GenerateIncrementalFlow(ctx *gin.Context) {
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

	var body IncrementalGenerateRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("new_text is required", "new_text", nil))
		return
	}

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	currentFlow, err := services.CurrentFlowData(db.DB, project.ID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	contents, err := projectHearingContents(project.ID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	fullContext := strings.Join(contents, "\n\n")

	result, err := h.incremental.GenerateIncrementalFlow(ctx.Request.Context(), currentFlow, body.NewText, fullContext)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	// The incremental result carries no edges, so reconciliation clears any
	// stale ones along with the replaced nodes.
	nodes, _, err := services.ReplaceProjectFlow(db.DB, project.ID, &result.Flow)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := h.undoStore.Clear(project.ID); err != nil {
		log.Printf("Failed to clear undo slot for project %d: %v", project.ID, err)
	}

	log.Printf("Incrementally updated flow for project %d: %d nodes, %d operations",
		project.ID, len(nodes), len(result.Operations))
	BroadcastFlowUpdated(project.ID, "flow_updated_incremental")
	ctx.JSON(http.StatusOK, gin.H{
		"flow":       result.Flow,
		"operations": result.Operations,
		"reason":     result.Reason,
		"flow_nodes": nodes,
	})
}
