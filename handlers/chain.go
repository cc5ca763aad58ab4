package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum/middleware"
	"momentum/models"
	"momentum/services"
)

type ChainHandler struct {
	chains *services.ChainService
	logger *zap.Logger
}

func NewChainHandler(chains *services.ChainService, logger *zap.Logger) *ChainHandler {
	return &ChainHandler{chains: chains, logger: logger}
}

type createChainInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
	Items       []struct {
		HabitID   uint   `json:"habit_id"`
		HabitName string `json:"habit_name"`
		Duration  string `json:"duration" validate:"required"`
	} `json:"items" validate:"required,min=1,max=20,dive"`
}

func (h *ChainHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input createChainInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if err := middleware.ValidateStruct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]models.ChainItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = models.ChainItem{
			HabitID:   item.HabitID,
			HabitName: item.HabitName,
			Duration:  item.Duration,
		}
	}

	chain, err := h.chains.Create(contextOf(c), user.ID, input.Name, input.Description, items)
	if err != nil {
		respondError(c, h.logger, "create_chain", err)
		return
	}
	c.JSON(http.StatusCreated, chain)
}

func (h *ChainHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	chains, err := h.chains.List(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "list_chains", err)
		return
	}
	c.JSON(http.StatusOK, chains)
}

func (h *ChainHandler) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	chain, err := h.chains.Get(contextOf(c), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get_chain", err)
		return
	}
	c.JSON(http.StatusOK, chain)
}

func (h *ChainHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}

	chain, err := h.chains.Update(contextOf(c), user.ID, c.Param("id"), input.Name, input.Description)
	if err != nil {
		respondError(c, h.logger, "update_chain", err)
		return
	}
	c.JSON(http.StatusOK, chain)
}

func (h *ChainHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if err := h.chains.Delete(contextOf(c), user.ID, c.Param("id")); err != nil {
		respondError(c, h.logger, "delete_chain", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "chain deleted"})
}
