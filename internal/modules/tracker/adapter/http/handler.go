package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	"github.com/dLukachev/maxbot/internal/modules/tracker/usecase"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Guard gates session commands on the user having goals set today.
type Guard interface {
	HasGoalsToday(ctx context.Context, tid int64) (bool, error)
}

// Handler handles HTTP requests for the tracker module.
type Handler struct {
	tracker *usecase.TrackerUseCase
	guard   Guard
}

// NewHandler creates a new HTTP handler
func NewHandler(tracker *usecase.TrackerUseCase, guard Guard) *Handler {
	return &Handler{tracker: tracker, guard: guard}
}

// RegisterRoutes registers all tracker routes to the given router group.
// The group is expected to be mounted under /users/:tid.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/start", h.Start)
	router.POST("/stop", h.Stop)
	router.POST("/adjust", h.Adjust)
	router.GET("/active-time", h.ActiveTime)
	router.GET("/goals/:goalID/time", h.GoalTime)
}

// DTOs
type startRequest struct {
	GoalID *int64 `json:"goal_id"`
}

type startResponse struct {
	SessionID int64  `json:"session_id"`
	StartedAt string `json:"started_at"`
	Started   bool   `json:"started"` // false when a session was already open
}

type adjustRequest struct {
	GoalID *int64 `json:"goal_id"`
	Amount string `json:"amount" binding:"required"` // signed HH:MM:SS
}

// Start opens a session, refusing until today's goals are set.
func (h *Handler) Start(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	// an empty body means an untagged session
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	has, err := h.guard.HasGoalsToday(c.Request.Context(), tid)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Start: guard check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !has {
		c.JSON(http.StatusConflict, gin.H{"error": "no goals set today"})
		return
	}

	session, started, err := h.tracker.Start(c.Request.Context(), tid, req.GoalID)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Start: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, startResponse{
		SessionID: session.ID,
		StartedAt: session.StartAt.In(timex.Location).Format(time.RFC3339),
		Started:   started,
	})
}

// Stop closes the open session and reports the elapsed time.
func (h *Handler) Stop(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	elapsed, err := h.tracker.Stop(c.Request.Context(), tid)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
			return
		}
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Stop: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"elapsed": timex.FormatDuration(elapsed)})
}

// Adjust applies a signed manual correction, recorded as a retroactive
// session.
func (h *Handler) Adjust(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delta, err := timex.ParseSignedHHMMSS(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.tracker.AdjustGoalTime(c.Request.Context(), tid, req.GoalID, delta)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Adjust: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total_active": timex.FormatSeconds(user.CountTime)})
}

// ActiveTime reports active time for a calendar day (?date=YYYY-MM-DD,
// today by default) or for the trailing week (?window=week).
func (h *Handler) ActiveTime(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	at := timex.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, timex.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		at = parsed
	}

	var (
		total time.Duration
		err   error
	)
	if c.Query("window") == "week" {
		total, err = h.tracker.TotalActiveForWeek(c.Request.Context(), tid, at)
	} else {
		total, err = h.tracker.TotalActiveOnDate(c.Request.Context(), tid, at)
	}
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("ActiveTime: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": timex.FormatDuration(total)})
}

// GoalTime reports the total time credited to one goal.
func (h *Handler) GoalTime(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}
	goalID, err := strconv.ParseInt(c.Param("goalID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return
	}

	total, err := h.tracker.TotalActiveForGoal(c.Request.Context(), tid, goalID)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("GoalTime: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": timex.FormatDuration(total)})
}

func parseTID(c *gin.Context) (int64, bool) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tid"})
		return 0, false
	}
	return tid, true
}
