package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/cache"
	"momentum/config"
	"momentum/handlers"
	"momentum/middleware"
	"momentum/models"
)

// Deps bundles everything route registration needs.
type Deps struct {
	DB     *gorm.DB
	Cache  *cache.Client
	Config *config.Config
	Logger *zap.Logger

	Auth     *handlers.AuthHandler
	Habits   *handlers.HabitHandler
	Chains   *handlers.ChainHandler
	Sessions *handlers.SessionHandler
	Profile  *handlers.ProfileHandler
}

// Register wires the full API surface onto the router.
func Register(r *gin.Engine, d Deps) {
	r.POST("/api/register", d.Auth.Register)
	r.POST("/api/login", d.Auth.Login)

	api := r.Group("/api")
	api.Use(middleware.Auth(d.DB, []byte(d.Config.JWTSecret)))
	{
		api.GET("/profile", d.Profile.Get)
		api.PUT("/profile", d.Profile.Update)
		api.GET("/profile/xp", d.Profile.History)
		api.POST("/profile/daily-bonus", d.Profile.DailyBonus)

		api.GET("/leaderboard",
			middleware.CacheResponse(d.Cache, d.Logger, 30*time.Second),
			d.Profile.Leaderboard)
		api.GET("/leaderboard/position", d.Profile.LeaderboardPosition)

		api.GET("/habits", d.Habits.List)
		api.POST("/habits", d.Habits.Create)
		api.PUT("/habits/:id", d.Habits.Update)
		api.DELETE("/habits/:id", d.Habits.Delete)
		api.POST("/habits/:id/complete", d.Habits.Complete)
		api.POST("/habits/:id/feedback", d.Habits.Feedback)
		api.GET("/habits/stats",
			middleware.CacheResponse(d.Cache, d.Logger, time.Minute),
			d.Habits.Stats)

		api.GET("/chains", d.Chains.List)
		api.POST("/chains", d.Chains.Create)
		api.GET("/chains/:id", d.Chains.Get)
		api.PUT("/chains/:id", d.Chains.Update)
		api.DELETE("/chains/:id", d.Chains.Delete)

		api.POST("/sessions", d.Sessions.Create)
		api.GET("/sessions", d.Sessions.List)
		api.GET("/sessions/active", d.Sessions.GetActive)
		api.GET("/sessions/:id", d.Sessions.Get)
		api.POST("/sessions/:id/habits/:index/start", d.Sessions.StartHabit)
		api.POST("/sessions/:id/habits/:index/complete", d.Sessions.CompleteHabit)
		api.POST("/sessions/:id/habits/:index/skip", d.Sessions.SkipHabit)
		api.POST("/sessions/:id/pause", d.Sessions.Pause)
		api.POST("/sessions/:id/resume", d.Sessions.Resume)
		api.POST("/sessions/:id/break/start", d.Sessions.StartBreak)
		api.POST("/sessions/:id/break/end", d.Sessions.EndBreak)
		api.POST("/sessions/:id/abandon", d.Sessions.Abandon)

		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.POST("/sessions/sweep", d.Sessions.Sweep)
	}
}
