package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"pivoine.art/gamification/pkg/database"
)

const dateLayout = "2006-01-02"

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	DatabaseURL  string
	AutoMigrate  bool
	LogQueries   bool
	MaxOpenConns int

	RedisURL      string
	EventsChannel string

	JWTSecret     string
	WebhookSecret string

	PlatformLaunchDate      time.Time
	LeaderboardDefaultLimit int
	LeaderboardMaxLimit     int
	RecentPointsLimit       int
	AchievementsCatalog     string
	RecalculateCron         string
	RecalculateTimeout      time.Duration
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		EventsChannel: getEnv("EVENTS_CHANNEL", "gamification:events"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		AchievementsCatalog: os.Getenv("ACHIEVEMENTS_CATALOG"),
		RecalculateCron:     getEnv("RECALCULATE_CRON", "@every 1h"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.DSN(
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			os.Getenv("DB_PASS"),
			getEnv("DB_NAME", "directus"),
			getEnv("DB_PORT", "5432"),
		)
	}

	var err error
	if cfg.AutoMigrate, err = parseBool("AUTO_MIGRATE", "true"); err != nil {
		return nil, err
	}
	if cfg.LogQueries, err = parseBool("DB_LOG_QUERIES", "false"); err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns, err = parseInt("DB_MAX_OPEN_CONNS", "20"); err != nil {
		return nil, err
	}
	if cfg.LeaderboardDefaultLimit, err = parseInt("LEADERBOARD_DEFAULT_LIMIT", "100"); err != nil {
		return nil, err
	}
	if cfg.LeaderboardMaxLimit, err = parseInt("LEADERBOARD_MAX_LIMIT", "500"); err != nil {
		return nil, err
	}
	if cfg.RecentPointsLimit, err = parseInt("RECENT_POINTS_LIMIT", "10"); err != nil {
		return nil, err
	}

	cfg.RecalculateTimeout, err = time.ParseDuration(getEnv("RECALCULATE_TIMEOUT", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECALCULATE_TIMEOUT: %w", err)
	}

	cfg.PlatformLaunchDate, err = time.Parse(dateLayout, getEnv("PLATFORM_LAUNCH_DATE", "2025-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_LAUNCH_DATE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LeaderboardMaxLimit < 1 {
		return fmt.Errorf("LEADERBOARD_MAX_LIMIT must be positive, got %d", c.LeaderboardMaxLimit)
	}
	if c.LeaderboardDefaultLimit < 1 || c.LeaderboardDefaultLimit > c.LeaderboardMaxLimit {
		return fmt.Errorf("LEADERBOARD_DEFAULT_LIMIT must be in [1, %d], got %d", c.LeaderboardMaxLimit, c.LeaderboardDefaultLimit)
	}
	if c.RecentPointsLimit < 0 {
		return fmt.Errorf("RECENT_POINTS_LIMIT must not be negative, got %d", c.RecentPointsLimit)
	}
	if !c.IsDevelopment() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseInt(key, fallback string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseBool(key, fallback string) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
