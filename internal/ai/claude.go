package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// Structural bounds for incremental flows. Wider than full generation: an
// evolving flow may legitimately pass through states a from-scratch result
// would never be allowed to start in.
const (
	incrementalMinActors = 1
	incrementalMaxActors = 10
	incrementalMinSteps  = 1
	incrementalMaxSteps  = 15
	incrementalMinNodes  = 1
	incrementalMaxNodes  = 50
)

// incrementalContextLimit caps the reference context embedded in an update
// prompt, counted in runes.
const incrementalContextLimit = 1000

const claudeSystemPrompt = `あなたはビジネスプロセス整理の専門家です。
ヒアリング内容を分析し、構造化されたビジネスフローを増分的に構築・更新します。

重要な原則:
1. **既存フローの尊重**: 既存のフロー構造を可能な限り保持し、必要最小限の変更のみ行う
2. **文脈理解**: 新しい情報を既存フローの文脈で解釈し、適切に統合する
3. **アクター自動判定**: 発言内容から関連するアクターを自動的に判定する
4. **ステップ構造**: ビジネスプロセスを論理的なステップに分割する
5. **時系列順序**: フローノードは時系列に並べる（order値で管理）
6. **日本語**: すべての出力は日本語で記述する

操作タイプ:
- add: 新しいノードをフローに追加
- modify: 既存ノードの内容を更新
- delete: 不要なノードを削除
- reorder: ノードの順序を変更

必ず以下のJSON形式で応答してください（JSONのみ、説明文は不要）:
{
  "flow": {
    "actors": [{"name": "登場人物名", "role": "役割"}],
    "steps": [{"name": "ステップ名", "description": "説明"}],
    "flow_nodes": [{"text": "アクション", "order": 0, "actor": "登場人物名", "step": "ステップ名"}]
  },
  "operations": [
    {"type": "add", "node": {...}, "reason": "追加理由"}
  ],
  "reason": "全体的な変更の説明"
}`

const claudeInitialPromptTemplate = `以下のヒアリング内容から、初期ビジネスフローを生成してください。

ヒアリング内容:
%s

要件:
- 2-5人の登場人物を特定
- 2-6個のステップを作成
- 各アクションを明確に記述
- order値は0から連番で設定

JSON形式で応答してください。`

const claudeUpdatePromptTemplate = `既存のビジネスフローを、新しいヒアリング内容に基づいて更新してください。

【既存フロー】
%s

【新しいヒアリング内容】
%s

【全体コンテキスト（参考用）】
%s...

要件:
- 既存フローとの整合性を保つ
- 新情報を適切に統合
- 必要最小限の変更
- 重複を避ける
- 論理的な順序を維持

operationsには実際に適用した変更を記録してください。
JSON形式で応答してください。`

// defaultIncrementalReason fills in when the model omits its change summary.
const defaultIncrementalReason = "フローを更新しました"

// ClaudeService drives incremental flow generation: given the current flow
// and new hearing content, it asks the model for an updated flow plus the
// operations that produced it.
type ClaudeService struct {
	client      CompletionClient
	initialized bool
	maxRetries  int
	baseTimeout time.Duration
	maxTimeout  time.Duration
	model       string
	maxTokens   int
	temperature float64
	sleep       func(time.Duration)
}

func NewClaudeService(model string, maxTokens int, temperature float64) *ClaudeService {
	return &ClaudeService{
		maxRetries:  3,
		baseTimeout: 30 * time.Second,
		maxTimeout:  90 * time.Second,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		sleep:       time.Sleep,
	}
}

// Initialize configures the Anthropic client and smoke-tests the
// credential. Keys prefixed sk-ant-dummy skip the smoke test.
func (s *ClaudeService) Initialize(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return apperrors.NewConfigurationError(
			"Anthropic API key not configured. Please set ANTHROPIC_API_KEY environment variable.",
			"ANTHROPIC_API_KEY", nil)
	}

	client := NewAnthropicClient(apiKey, s.model)

	if strings.HasPrefix(apiKey, "sk-ant-dummy") {
		log.Println("Using dummy Anthropic API key - skipping connection test")
	} else if err := s.testConnection(ctx, client); err != nil {
		log.Printf("Claude service connection test failed: %v", err)
		return apperrors.NewConfigurationError(
			fmt.Sprintf("Failed to initialize Claude service: %v", err),
			"CLAUDE_SERVICE_INIT",
			map[string]any{"init_error": err.Error()})
	}

	s.client = client
	s.initialized = true
	log.Println("Claude Service initialized successfully")
	return nil
}

// Initialized reports whether the service holds a working client.
func (s *ClaudeService) Initialized() bool {
	return s.initialized
}

func (s *ClaudeService) testConnection(ctx context.Context, client CompletionClient) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := client.Complete(testCtx, "", "test", 0, 10)
	return err
}

// GenerateIncrementalFlow updates currentFlow with newText. A nil
// currentFlow asks for an initial flow instead. fullContext is the complete
// hearing history, included truncated for reference.
//
// Retry policy matches full generation except that any provider API error
// (auth included) is classed api_error and retried with exponential
// backoff, since transient upstream failures dominate that class here.
func (s *ClaudeService) GenerateIncrementalFlow(ctx context.Context, currentFlow *types.FlowData, newText, fullContext string) (*types.IncrementalResult, error) {
	if !s.initialized || s.client == nil {
		return nil, apperrors.NewValidationError("Claude Service not initialized", "", nil)
	}

	if strings.TrimSpace(newText) == "" {
		return nil, apperrors.NewValidationError("No new content provided for flow generation", "", nil)
	}

	prompt, err := s.buildPrompt(currentFlow, newText, fullContext)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		timeout := s.attemptTimeout(attempt)
		log.Printf("Claude generation attempt %d/%d with timeout %s", attempt+1, s.maxRetries, timeout)

		result, err := s.attemptGeneration(ctx, prompt, timeout)
		if err == nil {
			log.Printf("Successfully generated incremental flow on attempt %d", attempt+1)
			return result, nil
		}

		var authErr *AuthenticationError
		var rateLimitErr *RateLimitError
		var statusErr *APIStatusError
		var connectionErr *ConnectionError

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("Claude request timed out after %s (attempt %d)", timeout, attempt+1),
				"timeout", nil)
			log.Printf("Claude request timeout on attempt %d", attempt+1)

		case errors.As(err, &authErr), errors.As(err, &rateLimitErr), errors.As(err, &statusErr):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("Claude API error: %v", err),
				"api_error",
				map[string]any{"api_error": err.Error()})
			log.Printf("Claude API error on attempt %d: %v", attempt+1, err)
			if attempt < s.maxRetries-1 {
				s.sleep(time.Duration(1<<attempt) * time.Second)
			}

		case errors.As(err, &connectionErr):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("Claude connection error: %v", err),
				"connection",
				map[string]any{"connection_error": err.Error()})
			log.Printf("Connection error on attempt %d", attempt+1)
			if attempt < s.maxRetries-1 {
				s.sleep(time.Duration(attempt+1) * time.Second)
			}

		case isTerminal(err):
			return nil, err

		default:
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("Unexpected error during Claude generation: %v", err),
				"unexpected",
				map[string]any{"unexpected_error": err.Error()})
			log.Printf("Unexpected error on attempt %d: %v", attempt+1, err)
		}
	}

	log.Printf("Claude flow generation failed after %d attempts", s.maxRetries)
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, apperrors.NewAIServiceError("Claude flow generation failed after all retry attempts", "retry_exhausted", nil)
}

func (s *ClaudeService) attemptGeneration(ctx context.Context, prompt string, timeout time.Duration) (*types.IncrementalResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.client.Complete(attemptCtx, claudeSystemPrompt, prompt, s.temperature, s.maxTokens)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, apperrors.NewAIServiceError("Empty response from Claude", "empty_response", nil)
	}

	return ParseIncrementalResponse(raw)
}

func (s *ClaudeService) buildPrompt(currentFlow *types.FlowData, newText, fullContext string) (string, error) {
	if currentFlow == nil {
		return fmt.Sprintf(claudeInitialPromptTemplate, newText), nil
	}

	flowJSON, err := json.MarshalIndent(currentFlow, "", "  ")
	if err != nil {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("Failed to encode current flow: %v", err), "", nil)
	}

	contextRunes := []rune(fullContext)
	if len(contextRunes) > incrementalContextLimit {
		contextRunes = contextRunes[:incrementalContextLimit]
	}

	return fmt.Sprintf(claudeUpdatePromptTemplate, string(flowJSON), newText, string(contextRunes)), nil
}

func (s *ClaudeService) attemptTimeout(attempt int) time.Duration {
	timeout := s.baseTimeout << attempt
	if timeout > s.maxTimeout {
		return s.maxTimeout
	}
	return timeout
}

// ParseIncrementalResponse decodes a Claude response into an
// IncrementalResult. Code fences are stripped, a missing operations list
// defaults to empty and a missing reason gets a fixed summary. The flow
// itself is validated against the incremental bounds.
func ParseIncrementalResponse(raw string) (*types.IncrementalResult, error) {
	cleaned := stripClaudeFences(raw)

	decoder := json.NewDecoder(strings.NewReader(cleaned))
	decoder.UseNumber()

	var envelope struct {
		Flow       map[string]any        `json:"flow"`
		Operations []types.FlowOperation `json:"operations"`
		Reason     string                `json:"reason"`
	}
	if err := decoder.Decode(&envelope); err != nil {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Failed to parse Claude response as JSON: %v", err),
			"json_parse_error",
			map[string]any{"parse_error": err.Error(), "response_preview": bodyPreview(cleaned)})
	}

	if envelope.Flow == nil {
		return nil, apperrors.NewValidationError("Response missing 'flow' key", "", nil)
	}

	flow, err := validateIncrementalFlow(envelope.Flow)
	if err != nil {
		return nil, err
	}

	operations := envelope.Operations
	if operations == nil {
		operations = []types.FlowOperation{}
	}

	reason := envelope.Reason
	if reason == "" {
		reason = defaultIncrementalReason
	}

	return &types.IncrementalResult{Flow: *flow, Operations: operations, Reason: reason}, nil
}

// stripClaudeFences removes a surrounding markdown code block, including a
// leading json language tag.
func stripClaudeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	if len(lines) > 2 {
		cleaned = strings.Join(lines[1:len(lines)-1], "\n")
	}
	if strings.HasPrefix(cleaned, "json") {
		cleaned = strings.TrimSpace(cleaned[len("json"):])
	}
	return cleaned
}

// validateIncrementalFlow checks the looser incremental bounds and builds
// the typed flow. Sequential ordering is not required here; editing moves
// through intermediate states.
func validateIncrementalFlow(flow map[string]any) (*types.FlowData, error) {
	actorList, ok := flow["actors"].([]any)
	if !ok {
		return nil, apperrors.NewValidationError("Flow must contain 'actors' list", "", nil)
	}
	if len(actorList) < incrementalMinActors || len(actorList) > incrementalMaxActors {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Flow must have %d-%d actors, got %d", incrementalMinActors, incrementalMaxActors, len(actorList)), "", nil)
	}

	stepList, ok := flow["steps"].([]any)
	if !ok {
		return nil, apperrors.NewValidationError("Flow must contain 'steps' list", "", nil)
	}
	if len(stepList) < incrementalMinSteps || len(stepList) > incrementalMaxSteps {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Flow must have %d-%d steps, got %d", incrementalMinSteps, incrementalMaxSteps, len(stepList)), "", nil)
	}

	nodeList, ok := flow["flow_nodes"].([]any)
	if !ok {
		return nil, apperrors.NewValidationError("Flow must contain 'flow_nodes' list", "", nil)
	}
	if len(nodeList) < incrementalMinNodes || len(nodeList) > incrementalMaxNodes {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Flow must have %d-%d nodes, got %d", incrementalMinNodes, incrementalMaxNodes, len(nodeList)), "", nil)
	}

	actors := make([]types.Actor, 0, len(actorList))
	actorNames := make(map[string]bool, len(actorList))
	for i, item := range actorList {
		entry, _ := item.(map[string]any)
		name, nameOK := stringField(entry, "name")
		if !nameOK {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow actor %d must have a 'name'", i), "", nil)
		}
		role, _ := stringField(entry, "role")
		actors = append(actors, types.Actor{Name: name, Role: role})
		actorNames[name] = true
	}

	steps := make([]types.Step, 0, len(stepList))
	stepNames := make(map[string]bool, len(stepList))
	for i, item := range stepList {
		entry, _ := item.(map[string]any)
		name, nameOK := stringField(entry, "name")
		if !nameOK {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow step %d must have a 'name'", i), "", nil)
		}
		description, _ := stringField(entry, "description")
		steps = append(steps, types.Step{Name: name, Description: description})
		stepNames[name] = true
	}

	nodes := make([]types.NodeSpec, 0, len(nodeList))
	for i, item := range nodeList {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d must be an object", i), "", nil)
		}

		text, textOK := stringField(entry, "text")
		if !textOK || text == "" {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d missing or empty 'text'", i), "", nil)
		}

		order, orderOK := intValue(entry["order"])
		if !orderOK {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d missing or invalid 'order'", i), "", nil)
		}

		actor, _ := stringField(entry, "actor")
		if !actorNames[actor] {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d has invalid or missing 'actor'", i), "", nil)
		}

		step, _ := stringField(entry, "step")
		if !stepNames[step] {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("Flow node %d has invalid or missing 'step'", i), "", nil)
		}

		nodes = append(nodes, types.NodeSpec{Text: text, Order: order, Actor: actor, Step: step})
	}

	return &types.FlowData{Actors: actors, Steps: steps, FlowNodes: nodes}, nil
}
