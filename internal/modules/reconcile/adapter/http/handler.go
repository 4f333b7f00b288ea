package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dLukachev/maxbot/internal/modules/reconcile/usecase"
)

// Handler exposes a manual trigger for the daily sweep, useful for
// operations and for catching up after downtime.
type Handler struct {
	reconcile *usecase.ReconcileUseCase
}

// NewHandler creates a new HTTP handler
func NewHandler(reconcile *usecase.ReconcileUseCase) *Handler {
	return &Handler{reconcile: reconcile}
}

// RegisterRoutes registers all reconcile routes to the given router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/run", h.Run)
}

// Run triggers one reconciliation sweep synchronously.
func (h *Handler) Run(c *gin.Context) {
	stats := h.reconcile.Run(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"users":           stats.Users,
		"failed":          stats.Failed,
		"sessions_closed": stats.SessionsClosed,
		"elapsed_ms":      stats.Elapsed.Milliseconds(),
	})
}
