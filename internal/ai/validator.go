package ai

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// Structural bounds for a generated flow.
const (
	minActors = 3
	maxActors = 5
	minSteps  = 3
	maxSteps  = 10
	minNodes  = 3
	maxNodes  = 30
)

// Prohibited-term handling modes for ValidateFlowStructure.
const (
	ProhibitedWarn   = "warn"
	ProhibitedReject = "reject"
)

// prohibitedTerms flags evaluative language in node text. Generation is
// asked to organize the process, not to improve or rate it.
var prohibitedTerms = []string{
	"improve", "better", "optimize", "score", "rating", "evaluation",
	"recommend", "suggest", "should", "could", "might", "enhancement",
}

// ParseFlowResponse turns a raw model response into a FlowData. Markdown
// code fences are stripped first. Node parsing is strict and fails with a
// coded validation error; edge parsing is tolerant and drops malformed
// entries with a warning, since edges are advisory layout data while nodes
// are the flow itself.
func ParseFlowResponse(raw string) (flow *types.FlowData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewValidationError(
				fmt.Sprintf("Failed to parse AI response: %v", r),
				"parse_error",
				map[string]any{"error_details": fmt.Sprint(r)})
			flow = nil
		}
	}()

	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[:len(cleaned)-len("```")]
	}
	cleaned = strings.TrimSpace(cleaned)

	parsed, err := decodeObject(cleaned)
	if err != nil {
		log.Printf("JSON decode error: %v", err)
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("AI response is not valid JSON: %v", err),
			"json_format",
			map[string]any{"raw_response": bodyPreview(raw)})
	}

	for _, field := range []string{"actors", "steps", "flow_nodes"} {
		if _, ok := parsed[field]; !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("AI response missing '%s' field", field),
				"missing_field",
				map[string]any{"available_fields": sortedKeys(parsed)})
		}
	}

	actors, err := parseActors(parsed["actors"])
	if err != nil {
		return nil, err
	}

	steps, err := parseSteps(parsed["steps"])
	if err != nil {
		return nil, err
	}

	nodes, err := parseNodes(parsed["flow_nodes"], actors, steps)
	if err != nil {
		return nil, err
	}

	edges := parseEdges(parsed["edges"])

	return &types.FlowData{Actors: actors, Steps: steps, FlowNodes: nodes, Edges: edges}, nil
}

func parseActors(value any) ([]types.Actor, error) {
	list, ok := value.([]any)
	if !ok || len(list) < minActors || len(list) > maxActors {
		actualCount := any("not_list")
		if ok {
			actualCount = len(list)
		}
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Actors must be a list with %d-%d items", minActors, maxActors),
			"actors_count",
			map[string]any{"actual_count": actualCount})
	}

	actors := make([]types.Actor, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		name, nameOK := stringField(entry, "name")
		role, roleOK := stringField(entry, "role")
		if !ok || !nameOK || !roleOK {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Actor %d must have 'name' and 'role' fields", i),
				fmt.Sprintf("actor_%d_format", i),
				nil)
		}
		actors = append(actors, types.Actor{Name: name, Role: role})
	}
	return actors, nil
}

func parseSteps(value any) ([]types.Step, error) {
	list, ok := value.([]any)
	if !ok || len(list) < minSteps || len(list) > maxSteps {
		actualCount := any("not_list")
		if ok {
			actualCount = len(list)
		}
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Steps must be a list with %d-%d items", minSteps, maxSteps),
			"steps_count",
			map[string]any{"actual_count": actualCount})
	}

	steps := make([]types.Step, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		name, nameOK := stringField(entry, "name")
		description, descOK := stringField(entry, "description")
		if !ok || !nameOK || !descOK {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Step %d must have 'name' and 'description' fields", i),
				fmt.Sprintf("step_%d_format", i),
				nil)
		}
		steps = append(steps, types.Step{Name: name, Description: description})
	}
	return steps, nil
}

func parseNodes(value any, actors []types.Actor, steps []types.Step) ([]types.NodeSpec, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, apperrors.NewValidationError(
			"'flow_nodes' must be a list",
			"invalid_type",
			map[string]any{"actual_type": typeName(value)})
	}

	actorNames := make(map[string]bool, len(actors))
	validActors := make([]string, 0, len(actors))
	for _, actor := range actors {
		actorNames[actor.Name] = true
		validActors = append(validActors, actor.Name)
	}

	stepNames := make(map[string]bool, len(steps))
	validSteps := make([]string, 0, len(steps))
	for _, step := range steps {
		stepNames[step.Name] = true
		validSteps = append(validSteps, step.Name)
	}

	nodes := make([]types.NodeSpec, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d must be an object", i),
				fmt.Sprintf("node_%d_type", i),
				map[string]any{"actual_type": typeName(item)})
		}

		for _, field := range []string{"text", "order", "actor", "step"} {
			if _, ok := entry[field]; !ok {
				return nil, apperrors.NewValidationError(
					fmt.Sprintf("Flow node %d missing required field '%s'", i, field),
					fmt.Sprintf("node_%d_fields", i),
					map[string]any{"available_fields": sortedKeys(entry)})
			}
		}

		text, textOK := entry["text"].(string)
		if !textOK || strings.TrimSpace(text) == "" {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d 'text' must be a non-empty string", i),
				fmt.Sprintf("node_%d_text", i),
				map[string]any{"text_value": entry["text"]})
		}

		order, orderOK := intValue(entry["order"])
		if !orderOK || order < 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d 'order' must be a non-negative integer", i),
				fmt.Sprintf("node_%d_order", i),
				map[string]any{"order_value": entry["order"]})
		}

		actor, _ := entry["actor"].(string)
		if !actorNames[actor] {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d 'actor' must be one of the defined actors", i),
				fmt.Sprintf("node_%d_actor", i),
				map[string]any{"actor_value": entry["actor"], "valid_actors": validActors})
		}

		step, _ := entry["step"].(string)
		if !stepNames[step] {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d 'step' must be one of the defined steps", i),
				fmt.Sprintf("node_%d_step", i),
				map[string]any{"step_value": entry["step"], "valid_steps": validSteps})
		}

		node := types.NodeSpec{Text: text, Order: order, Actor: actor, Step: step}
		if x, ok := floatValue(entry["position_x"]); ok {
			node.PositionX = &x
		}
		if y, ok := floatValue(entry["position_y"]); ok {
			node.PositionY = &y
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// parseEdges never fails: a malformed edge only costs that edge.
func parseEdges(value any) []types.EdgeSpec {
	if value == nil {
		return nil
	}

	list, ok := value.([]any)
	if !ok {
		log.Printf("'edges' is not a list, defaulting to empty: %s", typeName(value))
		return nil
	}

	edges := make([]types.EdgeSpec, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			log.Printf("Edge %d is not an object, skipping", i)
			continue
		}
		if _, ok := entry["from_order"]; !ok {
			log.Printf("Edge %d missing required fields, skipping", i)
			continue
		}
		if _, ok := entry["to_order"]; !ok {
			log.Printf("Edge %d missing required fields, skipping", i)
			continue
		}
		from, fromOK := intValue(entry["from_order"])
		to, toOK := intValue(entry["to_order"])
		if !fromOK || !toOK {
			log.Printf("Edge %d has invalid order types, skipping", i)
			continue
		}
		condition, _ := entry["condition"].(string)
		edges = append(edges, types.EdgeSpec{FromOrder: from, ToOrder: to, Condition: condition})
	}
	return edges
}

// ValidateFlowStructure checks the structural invariants of a parsed flow:
// entity counts, a duplicate-free order sequence running 0..n-1, and the
// prohibited-term policy. Duplicates are reported before sequence gaps so
// the more specific error wins.
func ValidateFlowStructure(flow *types.FlowData, prohibitedMode string) error {
	if len(flow.Actors) < minActors || len(flow.Actors) > maxActors {
		return apperrors.NewValidationError(
			fmt.Sprintf("Flow must contain %d-%d actors, got %d", minActors, maxActors, len(flow.Actors)),
			"actor_count",
			map[string]any{"actual_count": len(flow.Actors), "required_range": fmt.Sprintf("%d-%d", minActors, maxActors)})
	}

	if len(flow.Steps) < minSteps || len(flow.Steps) > maxSteps {
		return apperrors.NewValidationError(
			fmt.Sprintf("Flow must contain %d-%d steps, got %d", minSteps, maxSteps, len(flow.Steps)),
			"step_count",
			map[string]any{"actual_count": len(flow.Steps), "required_range": fmt.Sprintf("%d-%d", minSteps, maxSteps)})
	}

	if len(flow.FlowNodes) < minNodes || len(flow.FlowNodes) > maxNodes {
		return apperrors.NewValidationError(
			fmt.Sprintf("Flow must contain %d-%d nodes, got %d", minNodes, maxNodes, len(flow.FlowNodes)),
			"node_count",
			map[string]any{"actual_count": len(flow.FlowNodes), "required_range": fmt.Sprintf("%d-%d", minNodes, maxNodes)})
	}

	orders := make([]int, len(flow.FlowNodes))
	seen := make(map[int]int, len(flow.FlowNodes))
	for i, node := range flow.FlowNodes {
		orders[i] = node.Order
		seen[node.Order]++
	}

	var duplicates []int
	for order, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, order)
		}
	}
	if len(duplicates) > 0 {
		sort.Ints(duplicates)
		return apperrors.NewValidationError(
			fmt.Sprintf("Flow nodes have duplicate order values: %v", duplicates),
			"duplicate_orders",
			map[string]any{"duplicate_orders": duplicates})
	}

	sortedOrders := make([]int, len(orders))
	copy(sortedOrders, orders)
	sort.Ints(sortedOrders)
	expected := make([]int, len(orders))
	for i := range expected {
		expected[i] = i
	}
	for i := range sortedOrders {
		if sortedOrders[i] != expected[i] {
			return apperrors.NewValidationError(
				"Flow nodes must have sequential ordering starting from 0",
				"node_ordering",
				map[string]any{"actual_orders": orders, "expected_orders": expected})
		}
	}

	for i, node := range flow.FlowNodes {
		textLower := strings.ToLower(node.Text)
		var found []string
		for _, term := range prohibitedTerms {
			if strings.Contains(textLower, term) {
				found = append(found, term)
			}
		}
		if len(found) == 0 {
			continue
		}
		if prohibitedMode == ProhibitedReject {
			return apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d contains prohibited terms %v", i, found),
				"prohibited_content",
				map[string]any{"node_index": i, "found_terms": found, "text": node.Text})
		}
		log.Printf("Flow node %d contains potentially prohibited terms %v: %s", i, found, node.Text)
	}

	return nil
}

func decodeObject(data string) (map[string]any, error) {
	decoder := json.NewDecoder(strings.NewReader(data))
	decoder.UseNumber()

	var parsed map[string]any
	if err := decoder.Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func stringField(entry map[string]any, key string) (string, bool) {
	if entry == nil {
		return "", false
	}
	value, ok := entry[key].(string)
	return value, ok
}

// intValue accepts only whole JSON numbers, so 1.5 and "1" both fail.
func intValue(value any) (int, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Int64()
	if err != nil {
		return 0, false
	}
	return int(parsed), true
}

func floatValue(value any) (float64, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Float64()
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
