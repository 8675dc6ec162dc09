package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"pivoine.art/gamification/internal/entity"
	gamificationDto "pivoine.art/gamification/internal/modules/gamification/dto"
	gamificationRepo "pivoine.art/gamification/internal/modules/gamification/repository"
	"pivoine.art/gamification/pkg/apperror"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
)

// Chain stages reported to chain_failures_total.
const (
	StageStats       = "stats"
	StageNotify      = "notify"
	StageEvent       = "event"
	StageRecalculate = "recalculate"
)

const (
	DefaultLeaderboardLimit = 100
	MaxLeaderboardLimit     = 500
	DefaultRecentPoints     = 10
)

// Notifier is told about every locked to unlocked transition.
type Notifier interface {
	AchievementUnlocked(ctx context.Context, userID uuid.UUID, achievement entity.Achievement) error
}

type GamificationService interface {
	AwardPoints(ctx context.Context, userID uuid.UUID, action string, recordingID *uuid.UUID) error
	UpdateUserStats(ctx context.Context, userID uuid.UUID) error
	CalculateWeightedScore(ctx context.Context, userID uuid.UUID, asOf time.Time) (float64, error)
	CheckAchievements(ctx context.Context, userID uuid.UUID, category string) error
	RecalculateAll(ctx context.Context) (int, error)

	Process(ctx context.Context, ev Event) error
	Dispatch(ctx context.Context, ev Event)

	Leaderboard(ctx context.Context, limit, offset int) (*gamificationDto.LeaderboardResponse, error)
	UserSummary(ctx context.Context, userID uuid.UUID) (*gamificationDto.UserSummaryResponse, error)
	Achievements(ctx context.Context, category string) ([]gamificationDto.AchievementResponse, error)
}

type gamificationService struct {
	repo      gamificationRepo.GamificationRepository
	registry  *Registry
	notifier  Notifier
	metrics   *metrics.Manager
	log       logger.Logger
	sanitizer *bluemonday.Policy
	now       func() time.Time

	launchDate   time.Time
	defaultLimit int
	maxLimit     int
	recentLimit  int
}

type Option func(*gamificationService)

func WithClock(now func() time.Time) Option {
	return func(s *gamificationService) { s.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(s *gamificationService) { s.log = log.Named("gamification") }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *gamificationService) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *gamificationService) { s.notifier = n }
}

func WithRegistry(r *Registry) Option {
	return func(s *gamificationService) { s.registry = r }
}

// WithLaunchDate sets the platform launch used by the early_adopter rule.
func WithLaunchDate(t time.Time) Option {
	return func(s *gamificationService) { s.launchDate = t }
}

func WithLeaderboardLimits(defaultLimit, maxLimit int) Option {
	return func(s *gamificationService) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

func WithRecentPointsLimit(n int) Option {
	return func(s *gamificationService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func NewGamificationService(repo gamificationRepo.GamificationRepository, opts ...Option) GamificationService {
	s := &gamificationService{
		repo:         repo,
		registry:     DefaultRegistry(),
		log:          logger.NewNop(),
		sanitizer:    bluemonday.StrictPolicy(),
		now:          time.Now,
		launchDate:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		defaultLimit: DefaultLeaderboardLimit,
		maxLimit:     MaxLeaderboardLimit,
		recentLimit:  DefaultRecentPoints,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// AwardPoints appends one ledger entry and refreshes the user's stats.
// Validation happens before any write. Once the entry is stored, later
// failures are logged and do not reach the caller.
func (s *gamificationService) AwardPoints(ctx context.Context, userID uuid.UUID, action string, recordingID *uuid.UUID) error {
	points, ok := PointsFor(action)
	if !ok {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownAction, action)
	}
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return err
	}

	if err := s.appendEntry(ctx, userID, action, points, recordingID); err != nil {
		return err
	}
	s.metrics.PointsAwarded(action)
	s.log.Debug("points awarded",
		logger.String("user_id", userID.String()),
		logger.String("action", action),
		logger.Int("points", points))

	s.refreshAfterWrite(ctx, userID)
	return nil
}

func (s *gamificationService) appendEntry(ctx context.Context, userID uuid.UUID, action string, points int, recordingID *uuid.UUID) error {
	entry := &entity.PointEntry{
		UserID:      userID,
		Action:      action,
		Points:      points,
		RecordingID: recordingID,
		DateCreated: s.now(),
	}
	if err := s.repo.CreatePointEntry(ctx, entry); err != nil {
		return fmt.Errorf("append %s: %w", action, err)
	}
	return nil
}

func (s *gamificationService) refreshAfterWrite(ctx context.Context, userID uuid.UUID) {
	if err := s.UpdateUserStats(ctx, userID); err != nil {
		s.chainFailure(StageStats, userID, err)
	}
}

func (s *gamificationService) chainFailure(stage string, userID uuid.UUID, err error) {
	s.metrics.ChainFailure(stage)
	s.log.Error("gamification chain failed",
		logger.String("stage", stage),
		logger.String("user_id", userID.String()),
		logger.Err(err))
}

// UpdateUserStats recomputes the user's stats row from the ledger and the
// source collections and writes it in one upsert. Unknown users get no row.
func (s *gamificationService) UpdateUserStats(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return err
	}

	start := time.Now()
	defer func() { s.metrics.ObserveStatsRefresh(time.Since(start)) }()

	now := s.now()
	stats := &entity.UserStats{UserID: userID, LastUpdated: now}

	var err error
	if stats.TotalRawPoints, err = s.repo.SumPoints(ctx, userID); err != nil {
		return fmt.Errorf("sum points: %w", err)
	}
	if stats.TotalWeightedPoints, err = s.repo.WeightedScore(ctx, userID, now); err != nil {
		return fmt.Errorf("weighted score: %w", err)
	}
	if stats.RecordingsCount, err = s.repo.CountPublishedRecordings(ctx, userID); err != nil {
		return fmt.Errorf("count recordings: %w", err)
	}
	if stats.PlaybacksCount, err = s.repo.CountQualifyingPlays(ctx, userID); err != nil {
		return fmt.Errorf("count plays: %w", err)
	}
	if stats.CommentsCount, err = s.repo.CountRecordingComments(ctx, userID); err != nil {
		return fmt.Errorf("count comments: %w", err)
	}
	if stats.AchievementsCount, err = s.repo.CountUnlockedAchievements(ctx, userID); err != nil {
		return fmt.Errorf("count achievements: %w", err)
	}

	if err := s.repo.UpsertUserStats(ctx, stats); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	return nil
}

// CalculateWeightedScore returns the decayed score. A zero asOf means now.
func (s *gamificationService) CalculateWeightedScore(ctx context.Context, userID uuid.UUID, asOf time.Time) (float64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.repo.WeightedScore(ctx, userID, asOf)
}

// CheckAchievements evaluates every published achievement, or those of one
// category, for the user. A failing achievement does not stop the others.
// Unknown users are rejected before any progress row is written.
func (s *gamificationService) CheckAchievements(ctx context.Context, userID uuid.UUID, category string) error {
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return err
	}

	achievements, err := s.repo.ListAchievements(ctx, category)
	if err != nil {
		return fmt.Errorf("list achievements: %w", err)
	}

	pc := ProgressContext{
		UserID:     userID,
		Now:        s.now(),
		LaunchDate: s.launchDate,
		Source:     s.repo,
	}

	var errs []error
	for _, a := range achievements {
		if err := s.evaluate(ctx, pc, a); err != nil {
			errs = append(errs, fmt.Errorf("achievement %s: %w", a.Code, err))
		}
	}
	return errors.Join(errs...)
}

func (s *gamificationService) evaluate(ctx context.Context, pc ProgressContext, a entity.Achievement) error {
	progress, err := s.registry.Progress(ctx, a.Code, pc)
	if err != nil {
		return err
	}
	if progress < 0 {
		progress = 0
	}

	if err := s.repo.UpsertAchievementProgress(ctx, pc.UserID, a.ID, progress); err != nil {
		return err
	}

	// a required count below 1 would unlock unknown codes at progress 0
	required := max(a.RequiredCount, 1)
	if progress < required {
		return nil
	}

	var bonus *entity.PointEntry
	if a.PointsReward > 0 {
		bonus = &entity.PointEntry{
			UserID:      pc.UserID,
			Action:      achievementAction(a.Code),
			Points:      a.PointsReward,
			DateCreated: s.now(),
		}
	}

	// the unlock and its bonus commit together or not at all
	transitioned, err := s.repo.UnlockAchievement(ctx, pc.UserID, a.ID, s.now(), bonus)
	if err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	if !transitioned {
		return nil
	}
	if bonus != nil {
		s.metrics.PointsAwarded(bonus.Action)
	}
	s.onUnlock(ctx, pc.UserID, a)
	return nil
}

// onUnlock runs once per (user, achievement): only the caller whose
// conditional update set date_unlocked gets here.
func (s *gamificationService) onUnlock(ctx context.Context, userID uuid.UUID, a entity.Achievement) {
	s.metrics.AchievementUnlocked(a.Code)
	s.log.Info("achievement unlocked",
		logger.String("user_id", userID.String()),
		logger.String("code", a.Code),
		logger.Int("reward", a.PointsReward))

	// achievements_count changed even without a reward
	s.refreshAfterWrite(ctx, userID)

	if s.notifier != nil {
		if err := s.notifier.AchievementUnlocked(ctx, userID, a); err != nil {
			s.chainFailure(StageNotify, userID, err)
		}
	}
}

// RecalculateAll refreshes the stats of every user that has a stats row or
// a ledger entry. It returns how many users were refreshed.
func (s *gamificationService) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListKnownUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	start := time.Now()
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.metrics.UsersRecalculated(done)
			return done, err
		}
		if err := s.UpdateUserStats(ctx, id); err != nil {
			s.chainFailure(StageRecalculate, id, err)
			continue
		}
		done++
	}

	s.metrics.UsersRecalculated(done)
	s.log.Info("recalculated user stats",
		logger.Int("users", done),
		logger.Int("known", len(ids)),
		logger.Duration("took", time.Since(start)))
	return done, nil
}
