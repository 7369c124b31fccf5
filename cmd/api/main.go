package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prizedraw/internal/config"
	"prizedraw/internal/event"
	"prizedraw/internal/handler"
	"prizedraw/internal/middleware"
	"prizedraw/internal/monitor"
	"prizedraw/internal/quota"
	"prizedraw/internal/service/activity"
	"prizedraw/internal/service/draw"
	"prizedraw/internal/service/stats"
	"prizedraw/internal/service/user"
	"prizedraw/internal/store"
	"prizedraw/internal/task"
	"prizedraw/internal/token"
	iutils "prizedraw/internal/utils"
	"prizedraw/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}
	config.GlobalConfig = cfg

	log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	treeStore := store.NewTreeStore()

	checkpoint := store.NewCheckpoint(treeStore, store.CheckpointConfig{
		Dir:        cfg.Store.Checkpoint.Dir,
		Filename:   cfg.Store.Checkpoint.Filename,
		Interval:   cfg.Store.Checkpoint.Interval,
		MaxRetries: cfg.Store.Checkpoint.MaxRetries,
		RetryDelay: cfg.Store.Checkpoint.RetryDelay,
	})
	// Restore persisted state before any traffic is accepted.
	if err := checkpoint.Load(); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to restore checkpoint")
	}
	checkpoint.Start()

	tracker := quota.NewTracker(treeStore)
	registry := token.NewRegistry()
	events := event.NewQueue(cfg.Draw.QueueCapacity)

	recorder, err := event.NewRecorder(events, treeStore, cfg.Draw.NodeID)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to create win recorder")
	}
	recorder.Start()

	jwtManager := iutils.NewJWTManager(
		cfg.Security.JWT.Secret,
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Expire,
		cfg.Security.JWT.RefreshTTL,
	)

	userService := user.NewService(treeStore, jwtManager, cfg.Draw.DefaultDrawQuota, cfg.Draw.DefaultWinQuota)
	if cfg.Security.Admin.Username != "" {
		if _, err := userService.EnsureAdmin(context.Background(), cfg.Security.Admin.Username, cfg.Security.Admin.Password); err != nil {
			log.WithFields(map[string]interface{}{
				"username": cfg.Security.Admin.Username,
				"error":    err.Error(),
			}).Fatal("Failed to ensure admin account")
		}
	}
	activityService := activity.NewService(treeStore, tracker, registry)
	drawService := draw.NewService(treeStore, tracker, registry, events)
	statsService := stats.NewService(treeStore, registry, events)

	preheater := task.NewPreheater(activityService, cfg.Preheat.Interval, cfg.Preheat.Lookahead)
	preheater.Start()

	metricsStop := make(chan struct{})
	if cfg.Metrics.Enabled {
		go monitor.CollectRuntime(treeStore, store.Namespaces, cfg.Metrics.RuntimeInterval, metricsStop)
	}

	router := setupRouter(cfg, jwtManager, userService, activityService, drawService, statsService)

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderMB << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Server forced to shutdown")
	}

	// Stop producers before the consumer, then take the final checkpoint so
	// drained win records land in the snapshot.
	preheater.Stop()
	recorder.Stop()
	close(metricsStop)
	checkpoint.Stop()

	log.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	jwtManager *iutils.JWTManager,
	userService user.Service,
	activityService activity.Service,
	drawService draw.Service,
	statsService stats.Service,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(cfg.Security.CORS.AllowOrigins))
	}
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	router.GET("/health", healthCheck)
	router.GET("/ping", ping)

	userHandler := handler.NewUserHandler(userService)
	activityHandler := handler.NewActivityHandler(activityService)
	drawHandler := handler.NewDrawHandler(drawService)
	statsHandler := handler.NewStatsHandler(statsService)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			authGroup := v1.Group("/auth")
			if cfg.RateLimit.Enabled {
				authGroup.Use(middleware.IPRateLimit(cfg.RateLimit.PerIP.RPS, cfg.RateLimit.PerIP.Burst))
			}
			{
				authGroup.POST("/register", userHandler.Register)
				authGroup.POST("/login", userHandler.Login)
				authGroup.POST("/refresh", userHandler.RefreshToken)
			}

			protected := v1.Group("")
			protected.Use(middleware.Auth(jwtManager))
			{
				protected.GET("/users/me", userHandler.Me)
				protected.GET("/users/me/wins", userHandler.MyWinRecords)
				protected.GET("/activities", activityHandler.ListActivities)
				protected.GET("/activities/:id", activityHandler.GetActivity)

				drawGroup := protected.Group("/draw")
				if cfg.RateLimit.Enabled {
					drawGroup.Use(middleware.DrawRateLimit(cfg.RateLimit.PerUser.RPS, cfg.RateLimit.PerUser.Burst))
				}
				{
					drawGroup.POST("/:activity_id", drawHandler.Draw)
				}
			}

			admin := v1.Group("/admin")
			admin.Use(middleware.RequireRole(jwtManager, "admin"))
			{
				admin.POST("/activities", activityHandler.CreateActivity)
				admin.PUT("/activities/:id", activityHandler.UpdateActivity)
				admin.POST("/activities/:id/end", activityHandler.EndActivity)
				admin.POST("/activities/:id/preheat", activityHandler.Preheat)
				admin.POST("/activities/:id/plans", activityHandler.SetAllocationPlan)
				admin.GET("/activities/:id/plans", activityHandler.ListAllocationPlans)
				admin.POST("/prizes", activityHandler.CreatePrize)
				admin.GET("/prizes", activityHandler.ListPrizes)
				admin.PUT("/users/quota", userHandler.UpdateQuota)
				admin.GET("/stats/overview", statsHandler.Overview)
				admin.GET("/stats/activities/:id", statsHandler.ActivityStats)
			}
		}
	}

	return router
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}
