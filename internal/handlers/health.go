package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/version"
)

// HealthHandler serves liveness/readiness probes.
type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(s *store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	if err := h.store.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}
