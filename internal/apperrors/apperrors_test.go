package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsTagDetails(t *testing.T) {
	v := NewValidationError("bad input", "actors_count", map[string]any{"actual_count": 2})
	assert.Equal(t, CodeValidationError, v.Code)
	assert.Equal(t, "actors_count", v.Field())
	assert.Equal(t, 2, v.Details["actual_count"])

	n := NewResourceNotFoundError("Project", 42)
	assert.Equal(t, CodeResourceNotFound, n.Code)
	assert.Equal(t, "Project with id 42 not found", n.Message)
	assert.Equal(t, "42", n.Details["resource_id"])

	a := NewAIServiceError("model unavailable", "timeout", nil)
	assert.Equal(t, "timeout", a.AIErrorType())

	d := NewDatabaseError("insert failed", "create node", nil)
	assert.Equal(t, "create node", d.Details["operation"])

	c := NewConfigurationError("missing key", "OPENAI_API_KEY", nil)
	assert.Equal(t, "OPENAI_API_KEY", c.Details["config_key"])
}

func TestDetailsNeverNil(t *testing.T) {
	e := NewValidationError("bad", "", nil)
	require.NotNil(t, e.Details)
	e.Details["extra"] = true
	assert.True(t, e.Details["extra"].(bool))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeValidationError, http.StatusBadRequest},
		{CodeResourceNotFound, http.StatusNotFound},
		{CodeAIServiceError, http.StatusInternalServerError},
		{CodeDatabaseError, http.StatusInternalServerError},
		{CodeConfigurationError, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.code), tt.code)
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestRespondWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/projects/1/flow", nil)

	Respond(ctx, NewResourceNotFoundError("Project", 1))

	assert.Equal(t, http.StatusNotFound, w.Code)
	errBody := decodeEnvelope(t, w)
	assert.Equal(t, CodeResourceNotFound, errBody["code"])
	assert.Equal(t, "Project with id 1 not found", errBody["message"])
	details := errBody["details"].(map[string]any)
	assert.Equal(t, "Project", details["resource_type"])
}

func TestRespondWrapsUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(ctx, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errBody := decodeEnvelope(t, w)
	assert.Equal(t, CodeInternalServerError, errBody["code"])
	assert.Contains(t, errBody["message"], "boom")
}

func TestProductionGatingHidesInternalMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetEnvironment("production")
	defer SetEnvironment("development")

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/api/flow/nodes", nil)

	Respond(ctx, NewDatabaseError("pq: connection refused on 10.0.0.3", "create node", nil))

	errBody := decodeEnvelope(t, w)
	assert.Equal(t, "A database error occurred. Please try again in a moment.", errBody["message"])
	assert.NotContains(t, fmt.Sprint(errBody["message"]), "10.0.0.3")

	// Validation messages describe user input and survive gating.
	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/api/flow/nodes", nil)

	Respond(ctx, NewValidationError("Actors must be a list with 3-5 items", "actors_count", nil))

	errBody = decodeEnvelope(t, w)
	assert.Equal(t, "Actors must be a list with 3-5 items", errBody["message"])
}

func TestAbortWithStatusUsesHTTPCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/nope", nil)

	AbortWithStatus(ctx, http.StatusUnauthorized, "X-User-ID header is required")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, ctx.IsAborted())
	errBody := decodeEnvelope(t, w)
	assert.Equal(t, "HTTP_401", errBody["code"])
}

func TestAppErrorUnwrapsThroughWrapping(t *testing.T) {
	inner := NewAIServiceError("rate limited", "rate_limit", nil)
	wrapped := fmt.Errorf("generation failed: %w", inner)

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "rate_limit", appErr.AIErrorType())
}
