package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/undo"
)

// ApplyUndo reverses a recorded flow operation inside one transaction and
// returns the project's nodes after the rollback, sorted by order.
//
// Reversals are tolerant of drift: undoing a create whose node was already
// deleted, or an update whose node is gone, is a no-op rather than an error.
// Undoing a delete restores the node's text and order under a new id; the
// actor and step labels are not part of the recorded snapshot and come back
// empty.
func ApplyUndo(gdb *gorm.DB, projectID uint, op undo.Operation) ([]models.FlowNode, error) {
	err := gdb.Transaction(func(tx *gorm.DB) error {
		switch v := op.(type) {
		case undo.CreateNode:
			return tx.Where("id = ? AND project_id = ?", v.NodeID, projectID).
				Delete(&models.FlowNode{}).Error
		case undo.DeleteNode:
			node := models.FlowNode{
				ProjectID: projectID,
				Text:      v.Text,
				Order:     v.Order,
			}
			return tx.Create(&node).Error
		case undo.UpdateNode:
			return tx.Model(&models.FlowNode{}).
				Where("id = ? AND project_id = ?", v.NodeID, projectID).
				Update("text", v.OldText).Error
		case undo.ReorderNodes:
			for nodeID, order := range v.OldOrders {
				err := tx.Model(&models.FlowNode{}).
					Where("id = ? AND project_id = ?", nodeID, projectID).
					Update("order", order).Error
				if err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("unknown undo operation %q", op.Kind())
		}
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError(
			"Failed to undo flow operation", "apply undo",
			map[string]any{"db_error": err.Error(), "operation": op.Kind()})
	}

	return ProjectFlowNodes(gdb, projectID)
}
