package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dLukachev/maxbot/internal/modules/goal/domain"
	"github.com/dLukachev/maxbot/internal/modules/goal/usecase"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Handler handles HTTP requests for the goal module.
type Handler struct {
	goals *usecase.GoalUseCase
}

// NewHandler creates a new HTTP handler
func NewHandler(goals *usecase.GoalUseCase) *Handler {
	return &Handler{goals: goals}
}

// RegisterRoutes registers all goal routes to the given router group.
// The group is expected to be mounted under /users/:tid.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("", h.Add)
	router.GET("", h.List)
	router.GET("/today", h.ListToday)
	router.PUT("/:id", h.Redescribe)
	router.POST("/done", h.SyncDone)
	router.DELETE("", h.BulkDelete)
}

// DTOs
type addRequest struct {
	Text string `json:"text" binding:"required"`
}

type goalDTO struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	IsDone      bool   `json:"is_done"`
}

type redescribeRequest struct {
	Description string `json:"description" binding:"required"`
}

type syncDoneRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

func toDTOs(goals []*domain.Goal) []goalDTO {
	out := make([]goalDTO, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalDTO{ID: g.ID, Description: g.Description, IsDone: g.IsDone})
	}
	return out
}

// Add creates goals from a comma-separated text.
func (h *Handler) Add(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(c.Request.Context()).Err(err).Msg("AddGoals: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	goals, err := h.goals.AddFromText(c.Request.Context(), tid, req.Text)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("AddGoals: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(goals) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no goals in text"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": toDTOs(goals)})
}

// List returns the user's goals, paginated.
func (h *Handler) List(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	goals, err := h.goals.List(c.Request.Context(), tid, limit, offset)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("ListGoals: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": toDTOs(goals)})
}

// ListToday returns the goals set inside the current calendar day.
func (h *Handler) ListToday(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	goals, err := h.goals.ListToday(c.Request.Context(), tid, timex.Now())
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("ListToday: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": toDTOs(goals)})
}

// Redescribe replaces a goal's text.
func (h *Handler) Redescribe(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return
	}

	var req redescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.goals.Redescribe(c.Request.Context(), id, req.Description); err != nil {
		if errors.Is(err, domain.ErrGoalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "goal not found"})
			return
		}
		logger.Error(c.Request.Context()).Err(err).Int64("goal_id", id).Msg("Redescribe: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SyncDone makes today's done set match the submitted ids: listed goals
// are marked done, unlisted ones are unmarked.
func (h *Handler) SyncDone(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	var req syncDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	marked, unmarked, err := h.goals.SyncDone(c.Request.Context(), tid, timex.Now(), req.IDs)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("SyncDone: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked, "unmarked": unmarked})
}

// BulkDelete removes the given goals.
func (h *Handler) BulkDelete(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.goals.BulkDelete(c.Request.Context(), tid, req.IDs)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("BulkDelete: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func parseTID(c *gin.Context) (int64, bool) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tid"})
		return 0, false
	}
	return tid, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
