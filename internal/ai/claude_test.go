package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// incrementalPayload builds a valid Claude response envelope.
func incrementalPayload(numActors, numSteps, numNodes int) map[string]any {
	return map[string]any{
		"flow":       flowPayload(numActors, numSteps, numNodes),
		"operations": []any{map[string]any{"type": "add", "reason": "新しい手順を追加"}},
		"reason":     "ヒアリング内容を反映しました",
	}
}

func newTestClaudeService(client CompletionClient) (*ClaudeService, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	svc := NewClaudeService("claude-3-5-sonnet-20241022", 2048, 0.3)
	svc.client = client
	svc.initialized = true
	svc.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return svc, sleeps
}

func TestParseIncrementalResponseValid(t *testing.T) {
	result, err := ParseIncrementalResponse(mustJSON(t, incrementalPayload(2, 2, 3)))
	require.NoError(t, err)

	assert.Len(t, result.Flow.Actors, 2)
	assert.Len(t, result.Flow.FlowNodes, 3)
	require.Len(t, result.Operations, 1)
	assert.Equal(t, "add", result.Operations[0].Type)
	assert.Equal(t, "ヒアリング内容を反映しました", result.Reason)
}

func TestParseIncrementalResponseStripsFences(t *testing.T) {
	raw := "```json\n" + mustJSON(t, incrementalPayload(1, 1, 1)) + "\n```"

	result, err := ParseIncrementalResponse(raw)
	require.NoError(t, err)
	assert.Len(t, result.Flow.FlowNodes, 1)

	// A bare fence without the language tag works too.
	raw = "```\n" + mustJSON(t, incrementalPayload(1, 1, 1)) + "\n```"
	result, err = ParseIncrementalResponse(raw)
	require.NoError(t, err)
	assert.Len(t, result.Flow.FlowNodes, 1)
}

func TestParseIncrementalResponseDefaults(t *testing.T) {
	payload := incrementalPayload(1, 1, 1)
	delete(payload, "operations")
	delete(payload, "reason")

	result, err := ParseIncrementalResponse(mustJSON(t, payload))
	require.NoError(t, err)

	assert.NotNil(t, result.Operations)
	assert.Empty(t, result.Operations)
	assert.Equal(t, "フローを更新しました", result.Reason)
}

func TestParseIncrementalResponseMissingFlowKey(t *testing.T) {
	_, err := ParseIncrementalResponse(`{"operations": []}`)

	appErr := requireAppError(t, err)
	assert.Equal(t, "Response missing 'flow' key", appErr.Message)
}

func TestParseIncrementalResponseInvalidJSON(t *testing.T) {
	_, err := ParseIncrementalResponse("フローを生成できません")

	appErr := requireAppError(t, err)
	assert.Equal(t, "json_parse_error", appErr.Field())
	assert.Contains(t, appErr.Details, "response_preview")
}

func TestParseIncrementalResponseBounds(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantMsg string
	}{
		{"no actors", incrementalPayload(0, 1, 1), "Flow must have 1-10 actors, got 0"},
		{"too many actors", incrementalPayload(11, 1, 1), "Flow must have 1-10 actors, got 11"},
		{"too many steps", incrementalPayload(1, 16, 1), "Flow must have 1-15 steps, got 16"},
		{"no nodes", incrementalPayload(1, 1, 0), "Flow must have 1-50 nodes, got 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIncrementalResponse(mustJSON(t, tt.payload))
			appErr := requireAppError(t, err)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestParseIncrementalResponseToleratesNonSequentialOrders(t *testing.T) {
	payload := incrementalPayload(1, 1, 2)
	nodes := payload["flow"].(map[string]any)["flow_nodes"].([]any)
	nodes[0].(map[string]any)["order"] = 5
	nodes[1].(map[string]any)["order"] = 9

	result, err := ParseIncrementalResponse(mustJSON(t, payload))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Flow.FlowNodes[0].Order)
	assert.Equal(t, 9, result.Flow.FlowNodes[1].Order)
}

func TestParseIncrementalResponseRejectsUnknownActor(t *testing.T) {
	payload := incrementalPayload(1, 1, 1)
	nodes := payload["flow"].(map[string]any)["flow_nodes"].([]any)
	nodes[0].(map[string]any)["actor"] = "無関係な人"

	_, err := ParseIncrementalResponse(mustJSON(t, payload))

	appErr := requireAppError(t, err)
	assert.Equal(t, "Flow node 0 has invalid or missing 'actor'", appErr.Message)
}

func TestGenerateIncrementalFlowRequiresInitialization(t *testing.T) {
	svc := NewClaudeService("claude-3-5-sonnet-20241022", 2048, 0.3)

	_, err := svc.GenerateIncrementalFlow(context.Background(), nil, "新しい内容", "")

	appErr := requireAppError(t, err)
	assert.Equal(t, "Claude Service not initialized", appErr.Message)
}

func TestGenerateIncrementalFlowRequiresNewText(t *testing.T) {
	svc, _ := newTestClaudeService(&fakeClient{responses: []fakeResponse{{content: "{}"}}})

	_, err := svc.GenerateIncrementalFlow(context.Background(), nil, "   ", "")

	appErr := requireAppError(t, err)
	assert.Equal(t, "No new content provided for flow generation", appErr.Message)
}

func TestGenerateIncrementalFlowInitialPrompt(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: mustJSON(t, incrementalPayload(2, 2, 2))}}}
	svc, _ := newTestClaudeService(client)

	result, err := svc.GenerateIncrementalFlow(context.Background(), nil, "問い合わせ対応の流れ", "全履歴")
	require.NoError(t, err)

	assert.Len(t, result.Flow.FlowNodes, 2)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "初期ビジネスフローを生成")
	assert.Contains(t, client.prompts[0], "問い合わせ対応の流れ")
	assert.NotContains(t, client.prompts[0], "既存フロー")
}

func TestGenerateIncrementalFlowUpdatePromptEmbedsCurrentFlow(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: mustJSON(t, incrementalPayload(2, 2, 2))}}}
	svc, _ := newTestClaudeService(client)

	current := &types.FlowData{
		Actors:    []types.Actor{{Name: "受付", Role: "問い合わせ受付"}},
		Steps:     []types.Step{{Name: "受付", Description: "内容を記録する"}},
		FlowNodes: []types.NodeSpec{{Text: "問い合わせを記録する", Order: 0, Actor: "受付", Step: "受付"}},
	}

	longContext := ""
	for i := 0; i < 300; i++ {
		longContext += fmt.Sprintf("発言%d。", i)
	}

	_, err := svc.GenerateIncrementalFlow(context.Background(), current, "電話でも受け付ける", longContext)
	require.NoError(t, err)

	prompt := client.prompts[0]
	assert.Contains(t, prompt, "【既存フロー】")
	assert.Contains(t, prompt, `"問い合わせを記録する"`)
	assert.Contains(t, prompt, "電話でも受け付ける")
	// Context is clipped to its first 1000 runes.
	assert.NotContains(t, prompt, "発言299。")
}

func TestGenerateIncrementalFlowAPIErrorBacksOffExponentially(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &APIStatusError{Provider: "anthropic", StatusCode: 500, Body: "overloaded"}},
	}}
	svc, sleeps := newTestClaudeService(client)

	_, err := svc.GenerateIncrementalFlow(context.Background(), nil, "内容", "")

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, "api_error", appErr.AIErrorType())
}

func TestGenerateIncrementalFlowAuthErrorsAreAPIErrors(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &AuthenticationError{Provider: "anthropic", StatusCode: 401, Body: "invalid x-api-key"}},
	}}
	svc, _ := newTestClaudeService(client)

	_, err := svc.GenerateIncrementalFlow(context.Background(), nil, "内容", "")

	appErr := requireAppError(t, err)
	assert.Equal(t, "api_error", appErr.AIErrorType())
}

func TestGenerateIncrementalFlowValidationFailureIsTerminal(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: `{"flow": {"actors": []}}`}}}
	svc, sleeps := newTestClaudeService(client)

	_, err := svc.GenerateIncrementalFlow(context.Background(), nil, "内容", "")

	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
}

func TestClaudeInitializeSkipsSmokeTestForDummyKey(t *testing.T) {
	svc := NewClaudeService("claude-3-5-sonnet-20241022", 2048, 0.3)

	err := svc.Initialize(context.Background(), "sk-ant-dummy-local")

	require.NoError(t, err)
	assert.True(t, svc.Initialized())
}
