package types

import "encoding/json"

// Actor is a named participant in a generated business flow.
type Actor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Step is one phase of a generated business flow.
type Step struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NodeSpec describes a single flow node as produced by generation, before it
// is persisted and assigned an id.
type NodeSpec struct {
	Text      string   `json:"text"`
	Order     int      `json:"order"`
	Actor     string   `json:"actor"`
	Step      string   `json:"step"`
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
}

// EdgeSpec connects two nodes by their order values. Orders are stable across
// regeneration while node ids are not.
type EdgeSpec struct {
	FromOrder int    `json:"from_order"`
	ToOrder   int    `json:"to_order"`
	Condition string `json:"condition,omitempty"`
}

// FlowData is a validated generation result: the complete node and edge set
// for one project.
type FlowData struct {
	Actors    []Actor    `json:"actors"`
	Steps     []Step     `json:"steps"`
	FlowNodes []NodeSpec `json:"flow_nodes"`
	Edges     []EdgeSpec `json:"edges,omitempty"`
}

// FlowOperation describes one change the incremental model reports having
// applied to the flow. Node is kept raw since its shape varies per operation.
type FlowOperation struct {
	Type   string          `json:"type"`
	Node   json.RawMessage `json:"node,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// IncrementalResult is the validated outcome of an incremental generation
// call: the full updated flow plus the operations that led to it.
type IncrementalResult struct {
	Flow       FlowData        `json:"flow"`
	Operations []FlowOperation `json:"operations"`
	Reason     string          `json:"reason"`
}
