package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/motorline/backend/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports process liveness and dependency readiness
type HealthHandler struct {
	BaseHandler
	db      *persistence.Database
	redis   *redis.Client
	started time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *persistence.Database, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redisClient,
		started: time.Now(),
	}
}

// RegisterRoutes registers health endpoints
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Liveness)
	rg.GET("/health/ready", h.Readiness)
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness reports that the process is up
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Readiness verifies the database and Redis are reachable. Any failing
// dependency turns the report into 503.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := HealthStatus{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
		Checks: checks,
	}
	if !healthy {
		status.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
