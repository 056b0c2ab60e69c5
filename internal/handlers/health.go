package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowscribe-dev/flowscribe/db"
)

// ReadinessReporter is the slice of the AI service health reporting needs.
type ReadinessReporter interface {
	Initialized() bool
}

func healthLabel(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

// HealthCheck builds the health endpoint. It pings the database and asks
// the AI service whether it finished initialization; the overall status is
// healthy only when both are.
func HealthCheck(environment string, ai ReadinessReporter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dbHealthy := false

		if db.DB != nil {
			if sqlDB, err := db.DB.DB(); err == nil && sqlDB.Ping() == nil {
				dbHealthy = true
			}
		}

		aiHealthy := ai != nil && ai.Initialized()

		ctx.JSON(http.StatusOK, gin.H{
			"status":      healthLabel(dbHealthy && aiHealthy),
			"environment": environment,
			"services": gin.H{
				"database":   healthLabel(dbHealthy),
				"ai_service": healthLabel(aiHealthy),
			},
		})
	}
}
