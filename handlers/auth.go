package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/config"
	"momentum/middleware"
	"momentum/models"
	"momentum/services"
	"momentum/utils"
)

type AuthHandler struct {
	db     *gorm.DB
	xp     *services.XPService
	cfg    *config.Config
	logger *zap.Logger
}

func NewAuthHandler(db *gorm.DB, xp *services.XPService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, xp: xp, cfg: cfg, logger: logger}
}

type registerInput struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
	Timezone string `json:"timezone"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input registerInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if err := middleware.ValidateStruct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}

	var existing models.User
	if err := h.db.Where("username = ?", input.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	user := models.User{
		Username:     input.Username,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		Timezone:     input.Timezone,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	// Every user gets a profile row immediately; XP awards assume it exists.
	if _, err := h.xp.EnsureProfile(contextOf(c), user.ID); err != nil {
		h.logger.Error("profile_bootstrap_failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	token, err := utils.GenerateToken([]byte(h.cfg.JWTSecret), user.ID, user.Username, user.Role, h.cfg.TokenTTL)
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	h.logger.Info("user_registered", zap.Uint("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
			"timezone": user.Timezone,
		},
	})
}

type loginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input loginInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}

	var user models.User
	if err := h.db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := utils.GenerateToken([]byte(h.cfg.JWTSecret), user.ID, user.Username, user.Role, h.cfg.TokenTTL)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
			"timezone": user.Timezone,
		},
	})
}

func contextOf(c *gin.Context) context.Context {
	return c.Request.Context()
}
