package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
)

// fakeClient scripts provider responses per attempt and records calls and
// sleeps so retry behavior can be asserted without real waiting.
type fakeClient struct {
	responses []fakeResponse
	calls     int
	prompts   []string
}

type fakeResponse struct {
	content string
	err     error
}

func (f *fakeClient) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, user)
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i].content, f.responses[i].err
}

func newTestService(client CompletionClient) (*AIService, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	svc := NewAIService(ProhibitedWarn)
	svc.client = client
	svc.initialized = true
	svc.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return svc, sleeps
}

func TestGenerateBusinessFlowSuccess(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: mustJSON(t, flowPayload(3, 3, 4))}}}
	svc, _ := newTestService(client)

	flow, err := svc.GenerateBusinessFlow(context.Background(), []string{"受注プロセスについて", "承認は課長が行う"})
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Len(t, flow.FlowNodes, 4)
	// Both logs end up in the prompt, joined with a blank line.
	assert.Contains(t, client.prompts[0], "受注プロセスについて\n\n承認は課長が行う")
}

func TestGenerateBusinessFlowRequiresInitialization(t *testing.T) {
	svc := NewAIService(ProhibitedWarn)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	assert.Equal(t, "AI Service not initialized", appErr.Message)
}

func TestGenerateBusinessFlowRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(&fakeClient{responses: []fakeResponse{{content: "{}"}}})

	_, err := svc.GenerateBusinessFlow(context.Background(), nil)
	appErr := requireAppError(t, err)
	assert.Equal(t, "No hearing logs provided", appErr.Message)

	_, err = svc.GenerateBusinessFlow(context.Background(), []string{"内容", "   "})
	appErr = requireAppError(t, err)
	assert.Equal(t, "All hearing logs must be non-empty strings", appErr.Message)
}

func TestGenerateBusinessFlowTimeoutRetriesWithoutSleep(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &ConnectionError{Provider: "openai", Err: context.DeadlineExceeded}},
	}}
	svc, sleeps := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 3, client.calls)
	assert.Empty(t, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeAIServiceError, appErr.Code)
	assert.Equal(t, "timeout", appErr.AIErrorType())
}

func TestGenerateBusinessFlowRateLimitBacksOffExponentially(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &RateLimitError{Provider: "openai", Body: "slow down"}},
	}}
	svc, sleeps := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, "rate_limit", appErr.AIErrorType())
}

func TestGenerateBusinessFlowConnectionBacksOffLinearly(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &ConnectionError{Provider: "openai", Err: errors.New("connection refused")}},
	}}
	svc, sleeps := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, "connection", appErr.AIErrorType())
}

func TestGenerateBusinessFlowValidationFailureIsTerminal(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: "これはJSONではありません"}}}
	svc, sleeps := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	assert.Equal(t, "json_format", appErr.Field())
}

func TestGenerateBusinessFlowEmptyResponseIsTerminal(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{content: ""}}}
	svc, _ := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 1, client.calls)
	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeAIServiceError, appErr.Code)
	assert.Equal(t, "empty_response", appErr.AIErrorType())
}

func TestGenerateBusinessFlowRecoversOnSecondAttempt(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &RateLimitError{Provider: "openai", Body: "busy"}},
		{content: mustJSON(t, flowPayload(3, 3, 3))},
	}}
	svc, sleeps := newTestService(client)

	flow, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
	assert.Equal(t, []time.Duration{1 * time.Second}, *sleeps)
	assert.Len(t, flow.FlowNodes, 3)
}

func TestGenerateBusinessFlowUnexpectedErrorRetries(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: &AuthenticationError{Provider: "openai", StatusCode: 401, Body: "bad key"}},
	}}
	svc, sleeps := newTestService(client)

	_, err := svc.GenerateBusinessFlow(context.Background(), []string{"内容"})

	assert.Equal(t, 3, client.calls)
	assert.Empty(t, *sleeps)
	appErr := requireAppError(t, err)
	assert.Equal(t, "unexpected", appErr.AIErrorType())
}

func TestAttemptTimeoutDoublesAndCaps(t *testing.T) {
	svc := NewAIService(ProhibitedWarn)

	assert.Equal(t, 30*time.Second, svc.attemptTimeout(0))
	assert.Equal(t, 60*time.Second, svc.attemptTimeout(1))
	assert.Equal(t, 90*time.Second, svc.attemptTimeout(2))
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	svc := NewAIService(ProhibitedWarn)

	err := svc.Initialize(context.Background(), "")

	appErr := requireAppError(t, err)
	assert.Equal(t, apperrors.CodeConfigurationError, appErr.Code)
	assert.Equal(t, "OPENAI_API_KEY", appErr.Details["config_key"])
	assert.False(t, svc.Initialized())
}

func TestInitializeSkipsSmokeTestForDummyKey(t *testing.T) {
	svc := NewAIService(ProhibitedWarn)

	err := svc.Initialize(context.Background(), "sk-dummy-local")

	require.NoError(t, err)
	assert.True(t, svc.Initialized())
}
