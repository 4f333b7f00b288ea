package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/internal/modules/user/usecase"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Handler handles HTTP requests for the user module.
type Handler struct {
	users  *usecase.UserUseCase
	ledger *usecase.LedgerUseCase
}

// NewHandler creates a new HTTP handler
func NewHandler(users *usecase.UserUseCase, ledger *usecase.LedgerUseCase) *Handler {
	return &Handler{users: users, ledger: ledger}
}

// RegisterRoutes registers all user routes to the given router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/register", h.Register)
	router.GET("/:tid/profile", h.Profile)
	router.POST("/:tid/duration", h.AddDuration)
	router.DELETE("/:tid", h.Delete)
}

// DTOs
type registerRequest struct {
	TID      int64  `json:"tid" binding:"required"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type registerResponse struct {
	TID     int64 `json:"tid"`
	Points  int   `json:"points"`
	Level   int   `json:"level"`
	Created bool  `json:"created"`
}

type profileResponse struct {
	TID         int64  `json:"tid"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Points      int    `json:"points"`
	ToNextLevel int    `json:"to_next_level"`
	MaxLevel    bool   `json:"max_level"`
	TotalActive string `json:"total_active"`
}

type durationRequest struct {
	Amount string `json:"amount" binding:"required"` // signed HH:MM:SS
}

type durationResponse struct {
	TID         int64  `json:"tid"`
	TotalActive string `json:"total_active"`
}

// Register creates the user on first contact; repeat calls are no-ops.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(c.Request.Context()).Err(err).Msg("Register: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, created, err := h.users.Register(c.Request.Context(), req.TID, req.Name, req.Username)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", req.TID).Msg("Register: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, registerResponse{
		TID:     user.TID,
		Points:  user.Points,
		Level:   user.Level,
		Created: created,
	})
}

// Profile returns the user card.
func (h *Handler) Profile(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	profile, err := h.users.Profile(c.Request.Context(), tid)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Profile: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		TID:         profile.TID,
		Name:        profile.Name,
		Level:       profile.Level,
		Points:      profile.Points,
		ToNextLevel: profile.ToNextLevel,
		MaxLevel:    profile.MaxLevel,
		TotalActive: timex.FormatDuration(profile.TotalActive),
	})
}

// AddDuration applies a signed HH:MM:SS correction straight to the
// cumulative counter. A malformed amount is rejected and nothing changes.
func (h *Handler) AddDuration(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(c.Request.Context()).Err(err).Msg("AddDuration: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := timex.ParseSignedHHMMSS(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.ledger.AddDuration(c.Request.Context(), tid, amount)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("AddDuration: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, durationResponse{
		TID:         user.TID,
		TotalActive: timex.FormatSeconds(user.CountTime),
	})
}

// Delete removes the user and everything attached to them.
func (h *Handler) Delete(c *gin.Context) {
	tid, ok := parseTID(c)
	if !ok {
		return
	}

	if err := h.users.Delete(c.Request.Context(), tid); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Error(c.Request.Context()).Err(err).Int64("tid", tid).Msg("Delete: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseTID(c *gin.Context) (int64, bool) {
	tid, err := strconv.ParseInt(c.Param("tid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tid"})
		return 0, false
	}
	return tid, true
}
