package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/services"
	"github.com/flowscribe-dev/flowscribe/internal/types"
	"github.com/flowscribe-dev/flowscribe/internal/undo"
	"github.com/flowscribe-dev/flowscribe/internal/utils"
)

// FlowGenerator produces a complete flow from hearing log contents.
type FlowGenerator interface {
	GenerateBusinessFlow(ctx context.Context, hearingLogs []string) (*types.FlowData, error)
}

// IncrementalGenerator updates an existing flow with new hearing content.
type IncrementalGenerator interface {
	GenerateIncrementalFlow(ctx context.Context, currentFlow *types.FlowData, newText, fullContext string) (*types.IncrementalResult, error)
}

// FlowHandler serves the flow endpoints. The generators and the undo store
// are injected so tests can swap them out.
type FlowHandler struct {
	generator   FlowGenerator
	incremental IncrementalGenerator
	undoStore   undo.Store
}

func NewFlowHandler(generator FlowGenerator, incremental IncrementalGenerator, undoStore undo.Store) *FlowHandler {
	return &FlowHandler{
		generator:   generator,
		incremental: incremental,
		undoStore:   undoStore,
	}
}

type CreateFlowNodeRequest struct {
	ProjectID uint     `json:"project_id" binding:"required"`
	Text      string   `json:"text" binding:"required"`
	Order     *int     `json:"order" binding:"required,gte=0"`
	Actor     string   `json:"actor"`
	Step      string   `json:"step"`
	PositionX *float64 `json:"position_x"`
	PositionY *float64 `json:"position_y"`
}

type UpdateFlowNodeRequest struct {
	Text string `json:"text" binding:"required"`
}

type NodeOrder struct {
	ID    uint `json:"id" binding:"required"`
	Order *int `json:"order" binding:"required,gte=0"`
}

type ReorderFlowNodesRequest struct {
	NodeOrders []NodeOrder `json:"node_orders" binding:"required"`
}

// fetchOwnedFlowNode loads a node and checks project ownership. Nodes under
// another user's project look missing.
func fetchOwnedFlowNode(nodeID uint, ownerID uint) (models.FlowNode, error) {
	var node models.FlowNode

	err := db.DB.First(&node, nodeID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return node, apperrors.NewResourceNotFoundError("Flow node", nodeID)
	}

	if err != nil {
		log.Printf("Failed to retrieve flow node %d: %v", nodeID, err)
		return node, apperrors.NewDatabaseError("Failed to retrieve flow node", "get flow node", nil)
	}

	if _, err := fetchOwnedProject(node.ProjectID, ownerID); err != nil {
		return node, apperrors.NewResourceNotFoundError("Flow node", nodeID)
	}

	return node, nil
}

// GetFlowNodes returns a project's nodes sorted by order.
func (h *FlowHandler) GetFlowNodes(ctx *gin.Context) {
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

	nodes, err := services.ProjectFlowNodes(db.DB, uint(projectID))

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"flow_nodes": utils.SanitizeFlowNodes(nodes)})
}

// GetCompleteFlow returns a project's nodes and edges together.
func (h *FlowHandler) GetCompleteFlow(ctx *gin.Context) {
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

	nodes, err := services.ProjectFlowNodes(db.DB, uint(projectID))

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	edges, err := services.ProjectFlowEdges(db.DB, uint(projectID))

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"flow_nodes": utils.SanitizeFlowNodes(nodes),
		"edges":      utils.SanitizeFlowEdges(edges),
	})
}

// CreateFlowNode inserts a single node and records its creation for undo.
func (h *FlowHandler) CreateFlowNode(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body CreateFlowNodeRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(
			"project_id, text and a non-negative order are required", "", nil))
		return
	}

	project, err := fetchOwnedProject(body.ProjectID, userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	node := models.FlowNode{
		ProjectID: project.ID,
		Text:      utils.SanitizeHTTPToHTTPS(body.Text),
		Order:     *body.Order,
		Actor:     utils.SanitizeHTTPToHTTPS(body.Actor),
		Step:      utils.SanitizeHTTPToHTTPS(body.Step),
		PositionX: body.PositionX,
		PositionY: body.PositionY,
	}

	if err := db.DB.Create(&node).Error; err != nil {
		log.Printf("Failed to create flow node for project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to create flow node", "create flow node", nil))
		return
	}

	if err := h.undoStore.Record(project.ID, undo.CreateNode{NodeID: node.ID}); err != nil {
		log.Printf("Failed to record undo operation for project %d: %v", project.ID, err)
	}

	log.Printf("Created flow node %d for project %d", node.ID, project.ID)
	BroadcastFlowUpdated(project.ID, "node_created")
	ctx.JSON(http.StatusOK, node)
}

// UpdateFlowNode replaces a node's text and records the old text for undo.
func (h *FlowHandler) UpdateFlowNode(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	nodeID, err := utils.GetNodeID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "node_id", nil))
		return
	}

	var body UpdateFlowNodeRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("Flow node text is required", "text", nil))
		return
	}

	node, err := fetchOwnedFlowNode(uint(nodeID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	oldText := node.Text
	node.Text = utils.SanitizeHTTPToHTTPS(body.Text)

	if err := db.DB.Save(&node).Error; err != nil {
		log.Printf("Failed to update flow node %d: %v", node.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to update flow node", "update flow node", nil))
		return
	}

	if err := h.undoStore.Record(node.ProjectID, undo.UpdateNode{NodeID: node.ID, OldText: oldText}); err != nil {
		log.Printf("Failed to record undo operation for project %d: %v", node.ProjectID, err)
	}

	log.Printf("Updated flow node %d", node.ID)
	BroadcastFlowUpdated(node.ProjectID, "node_updated")
	ctx.JSON(http.StatusOK, node)
}

// DeleteFlowNode removes a node. The undo snapshot is taken before the
// delete so the slot holds the text and order being destroyed.
func (h *FlowHandler) DeleteFlowNode(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		apperrors.AbortWithStatus(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	nodeID, err := utils.GetNodeID(ctx)

	if err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError(err.Error(), "node_id", nil))
		return
	}

	node, err := fetchOwnedFlowNode(uint(nodeID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := h.undoStore.Record(node.ProjectID, undo.DeleteNode{
		ProjectID: node.ProjectID,
		Text:      node.Text,
		Order:     node.Order,
	}); err != nil {
		log.Printf("Failed to record undo operation for project %d: %v", node.ProjectID, err)
	}

	if err := db.DB.Delete(&node).Error; err != nil {
		log.Printf("Failed to delete flow node %d: %v", node.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to delete flow node", "delete flow node", nil))
		return
	}

	log.Printf("Deleted flow node %d", node.ID)
	BroadcastFlowUpdated(node.ProjectID, "node_deleted")
	ctx.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Flow node %d deleted successfully", node.ID)})
}

// ReorderFlowNodes assigns new order values to the listed nodes in one
// transaction. The undo snapshot covers every node of the project, not just
// the listed ones, so a single undo restores the full prior arrangement.
func (h *FlowHandler) ReorderFlowNodes(ctx *gin.Context) {
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

	var body ReorderFlowNodesRequest

	if err := ctx.BindJSON(&body); err != nil {
		apperrors.Respond(ctx, apperrors.NewValidationError("node_orders is required", "node_orders", nil))
		return
	}

	project, err := fetchOwnedProject(uint(projectID), userID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	var current []models.FlowNode

	if err := db.DB.Where("project_id = ?", project.ID).Find(&current).Error; err != nil {
		log.Printf("Failed to snapshot node orders for project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to reorder flow nodes", "reorder flow nodes", nil))
		return
	}

	oldOrders := make(map[uint]int, len(current))

	for _, node := range current {
		oldOrders[node.ID] = node.Order
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		for _, nodeOrder := range body.NodeOrders {
			result := tx.Model(&models.FlowNode{}).
				Where("id = ? AND project_id = ?", nodeOrder.ID, project.ID).
				Update("order", *nodeOrder.Order)

			if result.Error != nil {
				return result.Error
			}

			if result.RowsAffected == 0 {
				return apperrors.NewResourceNotFoundError("Flow node", nodeOrder.ID)
			}
		}

		return nil
	})

	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			apperrors.Respond(ctx, appErr)
			return
		}
		log.Printf("Failed to reorder flow nodes for project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to reorder flow nodes", "reorder flow nodes", nil))
		return
	}

	if err := h.undoStore.Record(project.ID, undo.ReorderNodes{OldOrders: oldOrders}); err != nil {
		log.Printf("Failed to record undo operation for project %d: %v", project.ID, err)
	}

	nodes, err := services.ProjectFlowNodes(db.DB, project.ID)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	log.Printf("Reordered %d flow nodes for project %d", len(body.NodeOrders), project.ID)
	BroadcastFlowUpdated(project.ID, "nodes_reordered")
	ctx.JSON(http.StatusOK, utils.SanitizeFlowNodes(nodes))
}

// UndoFlowOperation reverses the project's recorded operation. The slot is
// cleared only after the reversal commits, so a failed undo can be retried.
func (h *FlowHandler) UndoFlowOperation(ctx *gin.Context) {
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

	op, err := h.undoStore.Get(project.ID)

	if errors.Is(err, undo.ErrNoOperation) {
		apperrors.Respond(ctx, apperrors.NewValidationError("No operation to undo", "", nil))
		return
	}

	if err != nil {
		log.Printf("Failed to read undo slot for project %d: %v", project.ID, err)
		apperrors.Respond(ctx, apperrors.NewDatabaseError("Failed to undo operation", "read undo slot", nil))
		return
	}

	nodes, err := services.ApplyUndo(db.DB, project.ID, op)

	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := h.undoStore.Clear(project.ID); err != nil {
		log.Printf("Failed to clear undo slot for project %d: %v", project.ID, err)
	}

	log.Printf("Undid %s operation for project %d", op.Kind(), project.ID)
	BroadcastFlowUpdated(project.ID, "undo_applied")
	ctx.JSON(http.StatusOK, utils.SanitizeFlowNodes(nodes))
}
