package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/handlers"
	"github.com/flowscribe-dev/flowscribe/internal/middleware"
	"github.com/flowscribe-dev/flowscribe/internal/types"
)

// NewRouter wires every endpoint. The flow handler arrives prebuilt since
// it carries the AI services and the undo store; environment feeds the
// health endpoint.
func NewRouter(flow *handlers.FlowHandler, environment string, ai handlers.ReadinessReporter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(apperrors.RecoveryHandler))
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept", "X-Requested-With", types.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length", types.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(ctx *gin.Context) {
		apperrors.AbortWithStatus(ctx, http.StatusNotFound, "Not Found")
	})

	r.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "AI Business Flow API",
			"version": "0.1.0",
		})
	})
	r.GET("/health", handlers.HealthCheck(environment, ai))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
			auth.POST("/register", handlers.Register)
			auth.GET("/user/:user_id", handlers.GetUser)
			auth.GET("/validate/:user_id", handlers.ValidateUser)
		}

		protected := api.Group("", middleware.AuthMiddleware())
		{
			projects := protected.Group("/projects")
			{
				projects.GET("", handlers.ListProjects)
				projects.POST("", handlers.CreateProject)
				projects.GET("/:project_id", handlers.GetProject)
				projects.PUT("/:project_id", handlers.UpdateProject)
				projects.DELETE("/:project_id", handlers.DeleteProject)

				projects.GET("/:project_id/hearing", handlers.GetHearingLogs)
				projects.POST("/:project_id/hearing", handlers.AddHearingLog)

				projects.POST("/:project_id/flow/generate", flow.GenerateFlow)
				projects.POST("/:project_id/flow/generate/incremental", flow.GenerateIncrementalFlow)
				projects.GET("/:project_id/flow", flow.GetFlowNodes)
				projects.GET("/:project_id/flow/complete", flow.GetCompleteFlow)
				projects.PUT("/:project_id/flow/reorder", flow.ReorderFlowNodes)
				projects.POST("/:project_id/flow/undo", flow.UndoFlowOperation)

				projects.GET("/:project_id/ws", handlers.WebSocket)
			}

			protected.PUT("/hearing/:hearing_id", handlers.UpdateHearingLog)
			protected.DELETE("/hearing/:hearing_id", handlers.DeleteHearingLog)

			protected.POST("/flow/nodes", flow.CreateFlowNode)
			protected.PUT("/flow/nodes/:node_id", flow.UpdateFlowNode)
			protected.DELETE("/flow/nodes/:node_id", flow.DeleteFlowNode)
		}
	}

	return r
}
