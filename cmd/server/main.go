package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pivoine.art/gamification/internal/bootstrap"
	"pivoine.art/gamification/internal/config"
	gamificationRepo "pivoine.art/gamification/internal/modules/gamification/repository"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	"pivoine.art/gamification/internal/modules/gamification/worker"
	notification "pivoine.art/gamification/internal/modules/notification/service"
	"pivoine.art/gamification/internal/scheduler"
	"pivoine.art/gamification/internal/server"
	"pivoine.art/gamification/pkg/database"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gamification: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: cfg.IsDevelopment()})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		LogQueries:   cfg.LogQueries,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := bootstrap.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		catalog, err := bootstrap.LoadCatalog(cfg.AchievementsCatalog)
		if err != nil {
			return err
		}
		if codes := bootstrap.Unevaluable(catalog, gamification.DefaultRegistry()); len(codes) > 0 {
			log.Warn("catalog codes without a progress function will never unlock", logger.Any("codes", codes))
		}
		if _, err := bootstrap.SeedAchievements(ctx, db, catalog, log); err != nil {
			return fmt.Errorf("failed to seed achievements: %w", err)
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient == nil {
		log.Warn("REDIS_URL not set: event subscriber and unlock notifications disabled")
	} else {
		defer redisClient.Close()
	}

	m := metrics.New()
	notificationSvc := notification.NewNotificationService(redisClient)

	gamificationSvc := gamification.NewGamificationService(
		gamificationRepo.NewGamificationRepository(db),
		gamification.WithLogger(log),
		gamification.WithMetrics(m),
		gamification.WithNotifier(notificationSvc),
		gamification.WithLaunchDate(cfg.PlatformLaunchDate),
		gamification.WithLeaderboardLimits(cfg.LeaderboardDefaultLimit, cfg.LeaderboardMaxLimit),
		gamification.WithRecentPointsLimit(cfg.RecentPointsLimit),
	)

	if redisClient != nil {
		subscriber := worker.NewEventSubscriber(redisClient, cfg.EventsChannel, gamificationSvc, m, log)
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				log.Error("event subscriber stopped", logger.Err(err))
			}
		}()
	}

	jobs := scheduler.New(log)
	if err := jobs.Register(scheduler.NewRecalculateJob(gamificationSvc, cfg.RecalculateCron, cfg.RecalculateTimeout)); err != nil {
		return err
	}
	jobs.Start()

	srv := server.NewServer(cfg, db, redisClient, gamificationSvc, m, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("http shutdown", logger.Err(serr))
	}
	if serr := jobs.Stop(shutdownCtx); serr != nil {
		log.Warn("scheduler did not stop in time", logger.Err(serr))
	}
	return err
}
