// Package main runs the meetup platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/config"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/auth"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/meetings"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/memberships"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/middleware"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/notifications"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/taxonomy"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/users"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/worker"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/database"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/queue"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/redis"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret)
	searchCache := cache.NewRedis(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notifications.NewQueueGateway(jobQueue, logger)

	// Directories
	userRepo := users.NewRepository(pool)
	taxonomyRepo := taxonomy.NewRepository(pool)
	taxonomyHandler := taxonomy.NewHandler(taxonomyRepo, logger)

	// Meetings: search + CRUD
	meetingRepo := meetings.NewRepository(pool)
	searchService := meetings.NewSearchService(meetingRepo, userRepo, searchCache,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)

	// Memberships: join-request state machine
	membershipStore := memberships.NewRepository(pool)
	membershipService := memberships.NewService(membershipStore, notifier,
		cfg.Meetings.RequireStudentVerification, logger)
	membershipHandler := memberships.NewHandler(membershipService, logger)

	meetingHandler := meetings.NewHandler(searchService, meetingRepo, taxonomyRepo,
		membershipStore, userRepo, searchCache, notifier,
		cfg.Meetings.DefaultPageSize, cfg.Meetings.MaxPageSize, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Taxonomy
		api.GET("/tags", taxonomyHandler.ListTags)
		api.GET("/topics", taxonomyHandler.ListTopics)

		// Meetings
		api.GET("/meetings", meetingHandler.List)
		api.POST("/meetings", meetingHandler.Create)
		api.GET("/meetings/:id", meetingHandler.GetByID)
		api.PUT("/meetings/:id", meetingHandler.Update)
		api.DELETE("/meetings/:id", meetingHandler.Delete)

		// Membership lifecycle (singular /meeting prefix keeps the join routes
		// out of the /meetings/:id wildcard tree)
		api.POST("/meeting/join/request", membershipHandler.Request)
		api.POST("/meeting/join/approve", membershipHandler.Approve)
		api.POST("/meeting/join/reject", membershipHandler.Reject)
		api.POST("/meeting/:id/user/:userID/exit", membershipHandler.Exit)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background expiry sweep (push delivery runs in cmd/worker)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper := worker.NewExpirySweeper(meetingRepo, searchCache,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, logger)
	go sweeper.Run(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
