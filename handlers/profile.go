package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum/middleware"
	"momentum/services"
)

type ProfileHandler struct {
	xp          *services.XPService
	leaderboard *services.LeaderboardService
	logger      *zap.Logger
}

func NewProfileHandler(xp *services.XPService, leaderboard *services.LeaderboardService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{xp: xp, leaderboard: leaderboard, logger: logger}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	profile, err := h.xp.GetProfile(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "get_profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "profile": profile})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input struct {
		PrivacyPublic *bool `json:"privacy_public"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}

	if input.PrivacyPublic != nil {
		if err := h.xp.UpdatePrivacy(contextOf(c), user.ID, *input.PrivacyPublic); err != nil {
			respondError(c, h.logger, "update_profile", err)
			return
		}
	}

	profile, err := h.xp.GetProfile(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "update_profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) History(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.xp.History(contextOf(c), user.ID, limit)
	if err != nil {
		respondError(c, h.logger, "xp_history", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *ProfileHandler) DailyBonus(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	amount, err := h.xp.ClaimDailyBonus(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "daily_bonus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": amount})
}

func (h *ProfileHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.leaderboard.Top(contextOf(c), limit, true)
	if err != nil {
		respondError(c, h.logger, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ProfileHandler) LeaderboardPosition(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	position, err := h.leaderboard.Position(contextOf(c), user.ID, true)
	if err != nil {
		respondError(c, h.logger, "leaderboard_position", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": position, "ranked": position > 0})
}
