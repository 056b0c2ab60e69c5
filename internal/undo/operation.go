// Package undo keeps one invertible operation per project: the last flow
// mutation, held until the next mutation overwrites it or an undo consumes
// it.
package undo

import (
	"encoding/json"
	"fmt"
)

// Operation kinds, stable across store backends.
const (
	KindCreateNode   = "create_node"
	KindDeleteNode   = "delete_node"
	KindUpdateNode   = "update_node"
	KindReorderNodes = "reorder_nodes"
)

// Operation is one invertible flow mutation. Each variant carries only what
// inversion needs, nothing more.
type Operation interface {
	Kind() string
}

// CreateNode records a node insert. Inverting deletes the node.
type CreateNode struct {
	NodeID uint `json:"node_id"`
}

func (CreateNode) Kind() string { return KindCreateNode }

// DeleteNode records a removed node. Inverting reinserts text and order
// under a fresh id; secondary fields are not preserved.
type DeleteNode struct {
	ProjectID uint   `json:"project_id"`
	Text      string `json:"text"`
	Order     int    `json:"order"`
}

func (DeleteNode) Kind() string { return KindDeleteNode }

// UpdateNode records the text a node had before an edit. Inverting writes
// the old text back.
type UpdateNode struct {
	NodeID  uint   `json:"node_id"`
	OldText string `json:"old_text"`
}

func (UpdateNode) Kind() string { return KindUpdateNode }

// ReorderNodes snapshots every node's order before a reorder. Inverting
// restores the whole assignment at once.
type ReorderNodes struct {
	OldOrders map[uint]int `json:"old_orders"`
}

func (ReorderNodes) Kind() string { return KindReorderNodes }

// Decode rebuilds an operation from its kind tag and JSON payload.
func Decode(kind string, payload []byte) (Operation, error) {
	switch kind {
	case KindCreateNode:
		var op CreateNode
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return op, nil
	case KindDeleteNode:
		var op DeleteNode
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return op, nil
	case KindUpdateNode:
		var op UpdateNode
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return op, nil
	case KindReorderNodes:
		var op ReorderNodes
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return op, nil
	default:
		return nil, fmt.Errorf("unknown undo operation kind %q", kind)
	}
}
