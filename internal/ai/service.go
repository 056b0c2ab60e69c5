// Package ai generates business flows from hearing logs through external
// model providers, with strict response validation and classified retries.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// Request parameters for full flow generation.
const (
	flowTemperature = 0.3
	flowMaxTokens   = 1000
)

// AIService orchestrates full flow generation: prompt assembly, provider
// calls with per-attempt timeouts, response validation and retry policy.
type AIService struct {
	client         CompletionClient
	initialized    bool
	maxRetries     int
	baseTimeout    time.Duration
	maxTimeout     time.Duration
	prohibitedMode string
	sleep          func(time.Duration)
}

func NewAIService(prohibitedMode string) *AIService {
	return &AIService{
		maxRetries:     3,
		baseTimeout:    30 * time.Second,
		maxTimeout:     90 * time.Second,
		prohibitedMode: prohibitedMode,
		sleep:          time.Sleep,
	}
}

// Initialize configures the OpenAI client and smoke-tests the credential
// with a one-token request. Keys prefixed sk-dummy skip the smoke test so
// development setups work offline.
func (s *AIService) Initialize(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return apperrors.NewConfigurationError(
			"OpenAI API key not configured. Please set OPENAI_API_KEY environment variable.",
			"OPENAI_API_KEY", nil)
	}

	client := NewOpenAIClient(apiKey)

	if strings.HasPrefix(apiKey, "sk-dummy") {
		log.Println("Using dummy API key - skipping connection test")
	} else if err := testConnection(ctx, client); err != nil {
		log.Printf("AI service connection test failed: %v", err)
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return apperrors.NewConfigurationError(
				fmt.Sprintf("OpenAI API authentication failed: %v", err),
				"OPENAI_API_KEY",
				map[string]any{"auth_error": err.Error()})
		}
		return apperrors.NewConfigurationError(
			fmt.Sprintf("Failed to initialize AI service: %v", err),
			"AI_SERVICE_INIT",
			map[string]any{"init_error": err.Error()})
	}

	s.client = client
	s.initialized = true
	log.Println("AI Service initialized successfully")
	return nil
}

// Initialized reports whether the service holds a working client.
func (s *AIService) Initialized() bool {
	return s.initialized
}

func testConnection(ctx context.Context, client CompletionClient) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := client.Complete(testCtx, "", "test", 0, 1)
	return err
}

// GenerateBusinessFlow turns hearing log contents into a validated flow.
//
// Up to three attempts are made. Timeouts retry immediately, rate limits
// back off exponentially (1s, 2s), connection errors back off linearly
// (1s, 2s). Validation failures and classified AI service errors are
// terminal: a model that returned garbage once is not asked again. When
// every attempt fails the last classified error is returned.
func (s *AIService) GenerateBusinessFlow(ctx context.Context, hearingLogs []string) (*types.FlowData, error) {
	if !s.initialized || s.client == nil {
		return nil, apperrors.NewValidationError("AI Service not initialized", "", nil)
	}

	if len(hearingLogs) == 0 {
		return nil, apperrors.NewValidationError("No hearing logs provided", "", nil)
	}

	for _, content := range hearingLogs {
		if strings.TrimSpace(content) == "" {
			return nil, apperrors.NewValidationError("All hearing logs must be non-empty strings", "", nil)
		}
	}

	combined := strings.Join(hearingLogs, "\n\n")
	if truncated := TruncateHearingContent(combined); truncated != combined {
		log.Printf("Hearing content is very long (%d chars), truncating", len([]rune(combined)))
		combined = truncated
	}
	prompt := BuildFlowPrompt(combined)

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		timeout := s.attemptTimeout(attempt)
		log.Printf("AI generation attempt %d/%d with timeout %s", attempt+1, s.maxRetries, timeout)

		flow, err := s.attemptGeneration(ctx, prompt, timeout)
		if err == nil {
			log.Printf("Successfully generated flow with %d nodes, %d actors, %d steps on attempt %d",
				len(flow.FlowNodes), len(flow.Actors), len(flow.Steps), attempt+1)
			return flow, nil
		}

		var rateLimitErr *RateLimitError
		var connectionErr *ConnectionError

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("AI request timed out after %s (attempt %d)", timeout, attempt+1),
				"timeout", nil)
			log.Printf("AI request timeout on attempt %d", attempt+1)

		case errors.As(err, &rateLimitErr):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("AI service rate limit exceeded: %v", err),
				"rate_limit",
				map[string]any{"rate_limit_error": err.Error()})
			log.Printf("Rate limit hit on attempt %d, waiting before retry", attempt+1)
			if attempt < s.maxRetries-1 {
				s.sleep(time.Duration(1<<attempt) * time.Second)
			}

		case errors.As(err, &connectionErr):
			lastErr = apperrors.NewAIServiceError(
				fmt.Sprintf("AI service connection error: %v", err),
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
				fmt.Sprintf("Unexpected error during AI generation: %v", err),
				"unexpected",
				map[string]any{"unexpected_error": err.Error()})
			log.Printf("Unexpected error on attempt %d: %v", attempt+1, err)
		}
	}

	log.Printf("AI flow generation failed after %d attempts", s.maxRetries)
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, apperrors.NewAIServiceError("AI flow generation failed after all retry attempts", "retry_exhausted", nil)
}

func (s *AIService) attemptGeneration(ctx context.Context, prompt string, timeout time.Duration) (*types.FlowData, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.client.Complete(attemptCtx, FlowSystemPrompt, prompt, flowTemperature, flowMaxTokens)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, apperrors.NewAIServiceError("Empty response from AI service", "empty_response", nil)
	}

	flow, err := ParseFlowResponse(raw)
	if err != nil {
		return nil, err
	}

	if err := ValidateFlowStructure(flow, s.prohibitedMode); err != nil {
		return nil, err
	}

	return flow, nil
}

// attemptTimeout doubles the base per attempt, capped at maxTimeout.
func (s *AIService) attemptTimeout(attempt int) time.Duration {
	timeout := s.baseTimeout << attempt
	if timeout > s.maxTimeout {
		return s.maxTimeout
	}
	return timeout
}

// isTerminal reports whether err is already a classified application error.
// Validation errors and tagged AI service errors never retry.
func isTerminal(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == apperrors.CodeValidationError || appErr.Code == apperrors.CodeAIServiceError
}
