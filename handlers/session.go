package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum/cache"
	"momentum/config"
	"momentum/middleware"
	"momentum/models"
	"momentum/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	cache    *cache.Client
	cfg      *config.Config
	logger   *zap.Logger
}

func NewSessionHandler(sessions *services.SessionService, cacheClient *cache.Client, cfg *config.Config, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, cache: cacheClient, cfg: cfg, logger: logger}
}

type createSessionInput struct {
	ChainID string `json:"chain_id" validate:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input createSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if err := middleware.ValidateStruct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.CreateSession(contextOf(c), user.ID, input.ChainID)
	if err != nil {
		respondError(c, h.logger, "create_session", err)
		return
	}
	middleware.InvalidateUserCache(c, h.cache, h.logger)
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sessions, err := h.sessions.ListSessions(contextOf(c), user.ID, limit, offset)
	if err != nil {
		respondError(c, h.logger, "list_sessions", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	session, err := h.sessions.GetSession(contextOf(c), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get_session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetActive(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	session, err := h.sessions.GetActiveSession(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "get_active_session", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type finishHabitInput struct {
	Notes        string `json:"notes"`
	TimeSpentMin int    `json:"time_spent_min"`
}

func (h *SessionHandler) StartHabit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	session, err := h.sessions.StartHabit(contextOf(c), user.ID, c.Param("id"), index)
	if err != nil {
		respondError(c, h.logger, "start_habit", err)
		return
	}
	middleware.InvalidateUserCache(c, h.cache, h.logger)
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) CompleteHabit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	var input finishHabitInput
	_ = c.ShouldBindJSON(&input)

	session, err := h.sessions.CompleteHabit(contextOf(c), user.ID, c.Param("id"), index, input.Notes, input.TimeSpentMin)
	if err != nil {
		respondError(c, h.logger, "complete_session_habit", err)
		return
	}
	middleware.InvalidateUserCache(c, h.cache, h.logger)
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) SkipHabit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	session, err := h.sessions.SkipHabit(contextOf(c), user.ID, c.Param("id"), index)
	if err != nil {
		respondError(c, h.logger, "skip_session_habit", err)
		return
	}
	middleware.InvalidateUserCache(c, h.cache, h.logger)
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Pause(c *gin.Context)      { h.simpleAction(c, h.sessions.Pause, "pause_session") }
func (h *SessionHandler) Resume(c *gin.Context)     { h.simpleAction(c, h.sessions.Resume, "resume_session") }
func (h *SessionHandler) StartBreak(c *gin.Context) { h.simpleAction(c, h.sessions.StartBreak, "start_break") }
func (h *SessionHandler) EndBreak(c *gin.Context)   { h.simpleAction(c, h.sessions.EndBreak, "end_break") }
func (h *SessionHandler) Abandon(c *gin.Context)    { h.simpleAction(c, h.sessions.Abandon, "abandon_session") }

func (h *SessionHandler) simpleAction(c *gin.Context, action func(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error), name string) {
	user, _ := middleware.CurrentUser(c)
	session, err := action(contextOf(c), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, name, err)
		return
	}
	middleware.InvalidateUserCache(c, h.cache, h.logger)
	c.JSON(http.StatusOK, session)
}

// Sweep is the admin hook for the idle-session reconciliation pass.
func (h *SessionHandler) Sweep(c *gin.Context) {
	swept, err := h.sessions.SweepIdle(contextOf(c), h.cfg.SweepThreshold)
	if err != nil {
		respondError(c, h.logger, "sweep_sessions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"abandoned": swept})
}

func paramIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid habit index"})
		return 0, false
	}
	return index, true
}
