// Package services holds the persistence workflows behind the flow
// endpoints: swapping a project's flow for a generated one and applying
// undo operations. All multi-row writes run in a single transaction.
package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/types"
	"github.com/flowscribe-dev/flowscribe/internal/utils"
)

// ReplaceProjectFlow swaps a project's entire node and edge set for the
// supplied flow. Old edges go first, then old nodes, then the new nodes and
// edges are inserted, all in one transaction: a failure anywhere leaves the
// previous flow untouched. Text fields are sanitized on the way in.
//
// The persisted rows are returned with their generated ids.
func ReplaceProjectFlow(gdb *gorm.DB, projectID uint, flow *types.FlowData) ([]models.FlowNode, []models.FlowEdge, error) {
	nodes := make([]models.FlowNode, 0, len(flow.FlowNodes))
	edges := make([]models.FlowEdge, 0, len(flow.Edges))

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.FlowEdge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.FlowNode{}).Error; err != nil {
			return err
		}

		for _, spec := range flow.FlowNodes {
			node := models.FlowNode{
				ProjectID: projectID,
				Text:      utils.SanitizeHTTPToHTTPS(spec.Text),
				Order:     spec.Order,
				Actor:     utils.SanitizeHTTPToHTTPS(spec.Actor),
				Step:      utils.SanitizeHTTPToHTTPS(spec.Step),
				PositionX: spec.PositionX,
				PositionY: spec.PositionY,
			}
			if err := tx.Create(&node).Error; err != nil {
				return err
			}
			nodes = append(nodes, node)
		}

		for _, spec := range flow.Edges {
			edge := models.FlowEdge{
				ProjectID:     projectID,
				FromNodeOrder: spec.FromOrder,
				ToNodeOrder:   spec.ToOrder,
				Condition:     utils.SanitizeHTTPToHTTPS(spec.Condition),
			}
			if err := tx.Create(&edge).Error; err != nil {
				return err
			}
			edges = append(edges, edge)
		}

		return nil
	})
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError(
			"Failed to persist generated flow", "replace project flow",
			map[string]any{"db_error": err.Error()})
	}

	return nodes, edges, nil
}

// ProjectFlowNodes returns a project's nodes sorted by order.
func ProjectFlowNodes(gdb *gorm.DB, projectID uint) ([]models.FlowNode, error) {
	var nodes []models.FlowNode
	err := gdb.Where("project_id = ?", projectID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Find(&nodes).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(
			"Failed to retrieve flow nodes", "list flow nodes",
			map[string]any{"db_error": err.Error()})
	}
	return nodes, nil
}

// ProjectFlowEdges returns a project's edges sorted by source order.
func ProjectFlowEdges(gdb *gorm.DB, projectID uint) ([]models.FlowEdge, error) {
	var edges []models.FlowEdge
	err := gdb.Where("project_id = ?", projectID).
		Order("from_node_order").
		Find(&edges).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(
			"Failed to retrieve flow edges", "list flow edges",
			map[string]any{"db_error": err.Error()})
	}
	return edges, nil
}

// CurrentFlowData rebuilds a FlowData view from a project's persisted
// nodes, for embedding in incremental prompts. Actor roles and step
// descriptions are not stored on nodes, so they come back empty; nil is
// returned when the project has no flow yet.
func CurrentFlowData(gdb *gorm.DB, projectID uint) (*types.FlowData, error) {
	nodes, err := ProjectFlowNodes(gdb, projectID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	var actors []types.Actor
	seenActors := make(map[string]bool)
	var steps []types.Step
	seenSteps := make(map[string]bool)
	specs := make([]types.NodeSpec, 0, len(nodes))

	for _, node := range nodes {
		if node.Actor != "" && !seenActors[node.Actor] {
			seenActors[node.Actor] = true
			actors = append(actors, types.Actor{Name: node.Actor})
		}
		if node.Step != "" && !seenSteps[node.Step] {
			seenSteps[node.Step] = true
			steps = append(steps, types.Step{Name: node.Step})
		}
		specs = append(specs, types.NodeSpec{
			Text:  node.Text,
			Order: node.Order,
			Actor: node.Actor,
			Step:  node.Step,
		})
	}

	return &types.FlowData{Actors: actors, Steps: steps, FlowNodes: specs}, nil
}
