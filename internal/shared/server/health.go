package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/shared/server/respond"
)

// registerHealthRoutes attaches liveness and readiness endpoints. Readiness
// pings the database when one is configured.
func registerHealthRoutes(rg *gin.RouterGroup, database *sql.DB) {
	rg.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	rg.GET("/ready", func(c *gin.Context) {
		if database == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true, "database": "memory"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			respond.Error(c, http.StatusServiceUnavailable, "not_ready", "database unavailable", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "database": "postgres"})
	})
}
