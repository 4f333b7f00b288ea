package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dLukachev/maxbot/internal/modules/points/usecase"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Handler handles HTTP requests for the points module.
type Handler struct {
	points *usecase.PointsUseCase
}

// NewHandler creates a new HTTP handler
func NewHandler(points *usecase.PointsUseCase) *Handler {
	return &Handler{points: points}
}

// RegisterRoutes registers all points routes to the given router group.
// The group is expected to be mounted under /users/:tid.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/daily", h.ComputeDaily)
}

type dailyResponse struct {
	Delta     int    `json:"delta"`
	Points    int    `json:"points"`
	Level     int    `json:"level"`
	LeveledUp bool   `json:"leveled_up"`
	HadGoals  bool   `json:"had_goals"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Active    string `json:"active"`
}

// ComputeDaily settles a calendar day (?date=YYYY-MM-DD, today by
// default) for the user.
func (h *Handler) ComputeDaily(c *gin.Context) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tid"})
		return
	}

	day := timex.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, timex.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	result, err := h.points.ComputeDaily(c.Request.Context(), tid, day)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("ComputeDaily: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dailyResponse{
		Delta:     result.Delta,
		Points:    result.Points,
		Level:     result.Level,
		LeveledUp: result.LeveledUp,
		HadGoals:  result.HadGoals,
		Done:      result.Done,
		Total:     result.Total,
		Active:    timex.FormatDuration(result.Active),
	})
}
