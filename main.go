package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"momentum/cache"
	"momentum/config"
	"momentum/db"
	"momentum/handlers"
	"momentum/middleware"
	"momentum/routes"
	"momentum/services"
	"momentum/utils"
)

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()
	utils.InitMetrics()

	logger.Info("starting_application")

	cfg := config.Load()

	handle, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db_connect_failed", zap.Error(err))
	}
	if err := db.Migrate(handle); err != nil {
		logger.Fatal("migration_failed", zap.Error(err))
	}

	cacheClient, err := cache.New(cfg, logger)
	if err != nil {
		// Redis is an accelerator here, not a dependency; run degraded.
		logger.Warn("redis_unavailable_running_degraded", zap.Error(err))
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	xpService := services.NewXPService(handle, cacheClient, logger)
	habitService := services.NewHabitService(handle, cacheClient, xpService, logger)
	chainService := services.NewChainService(handle, logger)
	sessionService := services.NewSessionService(handle, xpService, habitService, logger)
	leaderboardService := services.NewLeaderboardService(handle, cacheClient, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(cacheClient, logger, cfg.RateLimitRequests, cfg.RateLimitWindow))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.CSRFAuthKey != "" {
		r.Use(middleware.CSRFProtection([]byte(cfg.CSRFAuthKey)))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.Register(r, routes.Deps{
		DB:       handle,
		Cache:    cacheClient,
		Config:   cfg,
		Logger:   logger,
		Auth:     handlers.NewAuthHandler(handle, xpService, cfg, logger),
		Habits:   handlers.NewHabitHandler(habitService, logger),
		Chains:   handlers.NewChainHandler(chainService, logger),
		Sessions: handlers.NewSessionHandler(sessionService, cacheClient, cfg, logger),
		Profile:  handlers.NewProfileHandler(xpService, leaderboardService, logger),
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweep(sweepCtx, sessionService, cfg, logger)

	startServer(r, cfg, logger)
}

// runSweep periodically abandons idle sessions. This is the only recovery
// path for sessions whose client died mid-run.
func runSweep(ctx context.Context, sessions *services.SessionService, cfg *config.Config, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.SweepIdle(ctx, cfg.SweepThreshold); err != nil {
				logger.Error("sweep_failed", zap.Error(err))
			}
		}
	}
}

func startServer(router *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting_http_server", zap.String("port", cfg.Port))
	fmt.Printf("Momentum backend listening on :%s\n", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down_server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server_forced_shutdown", zap.Error(err))
	}

	logger.Info("server_stopped")
}
