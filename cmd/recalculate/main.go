// Command recalculate runs one full stats recompute and exits. It is meant
// for an external periodic trigger when the server's own cron is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pivoine.art/gamification/internal/config"
	gamificationRepo "pivoine.art/gamification/internal/modules/gamification/repository"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	"pivoine.art/gamification/internal/scheduler"
	"pivoine.art/gamification/pkg/database"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recalculate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	timeout := flag.Duration("timeout", cfg.RecalculateTimeout, "abort the pass after this long")
	flag.Parse()

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

	m := metrics.New()
	svc := gamification.NewGamificationService(
		gamificationRepo.NewGamificationRepository(db),
		gamification.WithLogger(log),
		gamification.WithMetrics(m),
		gamification.WithLaunchDate(cfg.PlatformLaunchDate),
	)

	jobs := scheduler.New(log)
	if err := jobs.Register(scheduler.NewRecalculateJob(svc, "", *timeout)); err != nil {
		return err
	}

	start := time.Now()
	if err := jobs.RunByName(ctx, scheduler.RecalculateJobName); err != nil {
		return err
	}
	log.Info("recalculation complete", logger.Duration("elapsed", time.Since(start)))
	return nil
}
