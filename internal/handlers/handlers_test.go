package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/middleware"
	"github.com/flowscribe-dev/flowscribe/internal/models"
	"github.com/flowscribe-dev/flowscribe/internal/types"
	"github.com/flowscribe-dev/flowscribe/internal/undo"
)

// setupTestDB points the package-global connection at a fresh sqlite file
// and restores the previous one when the test finishes.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.HearingLog{},
		&models.FlowNode{},
		&models.FlowEdge{},
		&models.UndoRecord{},
	))

	previous := db.DB
	db.DB = gdb
	t.Cleanup(func() { db.DB = previous })

	return gdb
}

func seedUser(t *testing.T, userID string) models.User {
	t.Helper()

	user := models.User{UserID: userID, DisplayName: userID, IsActive: true}
	require.NoError(t, db.DB.Create(&user).Error)
	return user
}

func seedProject(t *testing.T, owner models.User, name string) models.Project {
	t.Helper()

	project := models.Project{Name: name, Status: models.ProjectStatusDraft, OwnerID: owner.ID}
	require.NoError(t, db.DB.Create(&project).Error)
	return project
}

func seedHearingLog(t *testing.T, project models.Project, content string) models.HearingLog {
	t.Helper()

	hearingLog := models.HearingLog{ProjectID: project.ID, Content: content}
	require.NoError(t, db.DB.Create(&hearingLog).Error)
	return hearingLog
}

func seedFlowNode(t *testing.T, project models.Project, text string, order int) models.FlowNode {
	t.Helper()

	node := models.FlowNode{ProjectID: project.ID, Text: text, Order: order}
	require.NoError(t, db.DB.Create(&node).Error)
	return node
}

// newTestEngine registers the same routes as the production router, minus
// CORS and logging.
func newTestEngine(h *FlowHandler) *gin.Engine {
	r := gin.New()

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", Login)
	auth.POST("/register", Register)
	auth.GET("/user/:user_id", GetUser)
	auth.GET("/validate/:user_id", ValidateUser)

	protected := api.Group("", middleware.AuthMiddleware())

	projects := protected.Group("/projects")
	projects.GET("", ListProjects)
	projects.POST("", CreateProject)
	projects.GET("/:project_id", GetProject)
	projects.PUT("/:project_id", UpdateProject)
	projects.DELETE("/:project_id", DeleteProject)
	projects.GET("/:project_id/hearing", GetHearingLogs)
	projects.POST("/:project_id/hearing", AddHearingLog)

	if h != nil {
		projects.POST("/:project_id/flow/generate", h.GenerateFlow)
		projects.POST("/:project_id/flow/generate/incremental", h.GenerateIncrementalFlow)
		projects.GET("/:project_id/flow", h.GetFlowNodes)
		projects.GET("/:project_id/flow/complete", h.GetCompleteFlow)
		projects.PUT("/:project_id/flow/reorder", h.ReorderFlowNodes)
		projects.POST("/:project_id/flow/undo", h.UndoFlowOperation)

		protected.POST("/flow/nodes", h.CreateFlowNode)
		protected.PUT("/flow/nodes/:node_id", h.UpdateFlowNode)
		protected.DELETE("/flow/nodes/:node_id", h.DeleteFlowNode)
	}

	protected.PUT("/hearing/:hearing_id", UpdateHearingLog)
	protected.DELETE("/hearing/:hearing_id", DeleteHearingLog)

	return r
}

func newFlowEngine(generator FlowGenerator, incremental IncrementalGenerator) (*gin.Engine, *undo.MemoryStore) {
	store := undo.NewMemoryStore()
	return newTestEngine(NewFlowHandler(generator, incremental, store)), store
}

func performRequest(engine *gin.Engine, method, path string, body any, userID string) *httptest.ResponseRecorder {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(types.UserIDHeader, userID)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var payload struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

type fakeGenerator struct {
	flow     *types.FlowData
	err      error
	calls    int
	lastLogs []string
}

func (f *fakeGenerator) GenerateBusinessFlow(_ context.Context, hearingLogs []string) (*types.FlowData, error) {
	f.calls++
	f.lastLogs = hearingLogs
	if f.err != nil {
		return nil, f.err
	}
	return f.flow, nil
}

type fakeIncremental struct {
	result      *types.IncrementalResult
	err         error
	lastCurrent *types.FlowData
	lastNewText string
	lastContext string
}

func (f *fakeIncremental) GenerateIncrementalFlow(_ context.Context, currentFlow *types.FlowData, newText, fullContext string) (*types.IncrementalResult, error) {
	f.lastCurrent = currentFlow
	f.lastNewText = newText
	f.lastContext = fullContext
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
