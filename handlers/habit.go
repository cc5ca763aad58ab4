package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"momentum/middleware"
	"momentum/models"
	"momentum/services"
)

type HabitHandler struct {
	habits *services.HabitService
	logger *zap.Logger
}

func NewHabitHandler(habits *services.HabitService, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, logger: logger}
}

type createHabitInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	Category  string `json:"category"`
	Frequency string `json:"frequency" validate:"required"`
	TimeOfDay string `json:"time_of_day"`
	Priority  string `json:"priority"`
}

func (h *HabitHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input createHabitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if err := middleware.ValidateStruct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	habit := &models.Habit{
		UserID:    user.ID,
		Name:      input.Name,
		Category:  input.Category,
		Frequency: input.Frequency,
		TimeOfDay: input.TimeOfDay,
		Priority:  input.Priority,
	}
	if err := h.habits.Create(contextOf(c), habit); err != nil {
		respondError(c, h.logger, "create_habit", err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

func (h *HabitHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	habits, err := h.habits.List(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "list_habits", err)
		return
	}
	c.JSON(http.StatusOK, habits)
}

func (h *HabitHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	habitID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input struct {
		Name      *string `json:"name"`
		Category  *string `json:"category"`
		Frequency *string `json:"frequency"`
		TimeOfDay *string `json:"time_of_day"`
		Priority  *string `json:"priority"`
		Status    *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}

	habit, err := h.habits.Update(contextOf(c), user.ID, habitID, func(habit *models.Habit) {
		if input.Name != nil {
			habit.Name = *input.Name
		}
		if input.Category != nil {
			habit.Category = *input.Category
		}
		if input.Frequency != nil {
			habit.Frequency = *input.Frequency
		}
		if input.TimeOfDay != nil {
			habit.TimeOfDay = *input.TimeOfDay
		}
		if input.Priority != nil {
			habit.Priority = *input.Priority
		}
		if input.Status != nil {
			habit.Status = *input.Status
		}
	})
	if err != nil {
		respondError(c, h.logger, "update_habit", err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	habitID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	if err := h.habits.Delete(contextOf(c), user.ID, habitID); err != nil {
		respondError(c, h.logger, "delete_habit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "habit deleted"})
}

func (h *HabitHandler) Complete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	habitID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input struct {
		Notes        string `json:"notes"`
		TimeSpentMin int    `json:"time_spent_min"`
	}
	// Body is optional for a plain check-off.
	_ = c.ShouldBindJSON(&input)

	habit, err := h.habits.MarkCompleted(contextOf(c), user.ID, habitID, input.Notes, input.TimeSpentMin)
	if err != nil {
		respondError(c, h.logger, "complete_habit", err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

type feedbackInput struct {
	Feedback  string `json:"feedback" validate:"required,max=2000"`
	Mood      string `json:"mood" validate:"required,oneof=great good neutral bad awful"`
	Completed bool   `json:"completed"`
}

func (h *HabitHandler) Feedback(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	habitID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var input feedbackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data"})
		return
	}
	if err := middleware.ValidateStruct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	habit, err := h.habits.UpsertFeedback(contextOf(c), &user, habitID, input.Feedback, input.Mood, input.Completed)
	if err != nil {
		respondError(c, h.logger, "habit_feedback", err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) Stats(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	stats, err := h.habits.UserStats(contextOf(c), user.ID)
	if err != nil {
		respondError(c, h.logger, "habit_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}
