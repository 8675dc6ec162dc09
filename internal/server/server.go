package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"pivoine.art/gamification/internal/config"
	"pivoine.art/gamification/internal/middleware"
	gamificationHttp "pivoine.art/gamification/internal/modules/gamification/delivery/http"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	notificationHttp "pivoine.art/gamification/internal/modules/notification/delivery/http"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
)

type Server struct {
	engine       *gin.Engine
	http         *http.Server
	gamification *gamificationHttp.GamificationHandler
	log          logger.Logger
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, gamificationSvc gamification.GamificationService, m *metrics.Manager, log logger.Logger) *Server {
	gamificationHandler := gamificationHttp.NewGamificationHandler(gamificationSvc, m, log, cfg.RecalculateTimeout)
	notificationHandler := notificationHttp.NewNotificationHandler(redisClient, cfg.AllowedOrigins, log)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/metrics", "/healthz"},
	}))
	router.Use(middleware.HTTPMetrics(m))

	router.GET("/healthz", healthz(db))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	// Platform webhooks, authenticated by shared secret
	api.POST("/gamification/events", middleware.RequireWebhookSecret(cfg.WebhookSecret), gamificationHandler.ReceiveEvent)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		g := protected.Group("/gamification")
		g.GET("/leaderboard", gamificationHandler.GetLeaderboard)
		g.GET("/achievements", gamificationHandler.GetAchievements)
		g.GET("/me", gamificationHandler.GetMySummary)
		g.GET("/user/:id", gamificationHandler.GetUserSummary)
		g.GET("/user/:id/score", gamificationHandler.GetUserScore)

		admin := g.Group("")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.POST("/user/:id/refresh", gamificationHandler.RefreshUser)
			admin.POST("/recalculate", gamificationHandler.Recalculate)
		}

		protected.GET("/notifications/ws", notificationHandler.Stream)
	}

	return &Server{
		engine: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		gamification: gamificationHandler,
		log:          log.Named("server"),
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("http server listening", logger.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for events that were already
// accepted to finish processing.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.gamification.Drain(ctx); err != nil {
		return fmt.Errorf("drain background work: %w", err)
	}
	return nil
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.WebhookSecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
