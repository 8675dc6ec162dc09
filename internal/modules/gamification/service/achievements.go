package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"pivoine.art/gamification/internal/entity"
	"pivoine.art/gamification/pkg/apperror"
)

// ProgressSource is the read side a progress function may query.
type ProgressSource interface {
	FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindUserStats(ctx context.Context, userID uuid.UUID) (*entity.UserStats, error)
	Rank(ctx context.Context, userID uuid.UUID, weighted float64) (int64, error)
	CountPublishedRecordings(ctx context.Context, userID uuid.UUID) (int64, error)
	CountFeaturedRecordings(ctx context.Context, userID uuid.UUID) (int64, error)
	CountQualifyingPlays(ctx context.Context, userID uuid.UUID) (int64, error)
	CountCompletedPlays(ctx context.Context, userID uuid.UUID) (int64, error)
	CountRecordingComments(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ProgressContext struct {
	UserID     uuid.UUID
	Now        time.Time
	LaunchDate time.Time
	Source     ProgressSource
}

// ProgressFunc computes the current progress of one user on one achievement.
type ProgressFunc func(ctx context.Context, pc ProgressContext) (int, error)

// Registry maps achievement codes to their progress functions.
type Registry struct {
	funcs map[string]ProgressFunc
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]ProgressFunc)}
}

// Register binds fn to code, replacing any previous binding.
func (r *Registry) Register(code string, fn ProgressFunc) {
	r.funcs[code] = fn
}

func (r *Registry) Has(code string) bool {
	_, ok := r.funcs[code]
	return ok
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.funcs))
	for code := range r.funcs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Progress evaluates code for the user. Unknown codes have progress 0.
func (r *Registry) Progress(ctx context.Context, code string, pc ProgressContext) (int, error) {
	fn, ok := r.funcs[code]
	if !ok {
		return 0, nil
	}
	return fn(ctx, pc)
}

// DefaultRegistry returns the registry for the built-in catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	recordings := countOf(ProgressSource.CountPublishedRecordings)
	for _, code := range []string{"first_recording", "recording_10", "recording_50", "recording_100"} {
		r.Register(code, recordings)
	}
	r.Register("featured_recording", countOf(ProgressSource.CountFeaturedRecordings))

	plays := countOf(ProgressSource.CountQualifyingPlays)
	for _, code := range []string{"first_play", "play_100", "play_500"} {
		r.Register(code, plays)
	}

	completed := countOf(ProgressSource.CountCompletedPlays)
	r.Register("completionist_10", completed)
	r.Register("completionist_100", completed)

	comments := countOf(ProgressSource.CountRecordingComments)
	for _, code := range []string{"first_comment", "comment_50", "comment_250"} {
		r.Register(code, comments)
	}

	r.Register("early_adopter", earlyAdopter)
	r.Register("one_year", oneYear)
	r.Register("balanced_creator", balancedCreator)
	r.Register("top_10_rank", topTenRank)

	return r
}

func countOf(count func(ProgressSource, context.Context, uuid.UUID) (int64, error)) ProgressFunc {
	return func(ctx context.Context, pc ProgressContext) (int, error) {
		n, err := count(pc.Source, ctx, pc.UserID)
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}
}

func boolProgress(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// joinDate returns the zero time for users that do not exist.
func joinDate(ctx context.Context, pc ProgressContext) (time.Time, error) {
	user, err := pc.Source.FindUser(ctx, pc.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return user.DateCreated, nil
}

// earlyAdopter: joined no later than one calendar month after launch.
func earlyAdopter(ctx context.Context, pc ProgressContext) (int, error) {
	joined, err := joinDate(ctx, pc)
	if err != nil || joined.IsZero() {
		return 0, err
	}
	return boolProgress(!joined.After(pc.LaunchDate.AddDate(0, 1, 0))), nil
}

func oneYear(ctx context.Context, pc ProgressContext) (int, error) {
	joined, err := joinDate(ctx, pc)
	if err != nil || joined.IsZero() {
		return 0, err
	}
	return boolProgress(!joined.After(pc.Now.AddDate(-1, 0, 0))), nil
}

const (
	balancedMinRecordings = 50
	balancedMinPlays      = 100
	topRankThreshold      = 10
)

func balancedCreator(ctx context.Context, pc ProgressContext) (int, error) {
	recordings, err := pc.Source.CountPublishedRecordings(ctx, pc.UserID)
	if err != nil {
		return 0, err
	}
	plays, err := pc.Source.CountQualifyingPlays(ctx, pc.UserID)
	if err != nil {
		return 0, err
	}
	return boolProgress(recordings >= balancedMinRecordings && plays >= balancedMinPlays), nil
}

// topTenRank reads the stats cache and uses the leaderboard rank order.
func topTenRank(ctx context.Context, pc ProgressContext) (int, error) {
	stats, err := pc.Source.FindUserStats(ctx, pc.UserID)
	if err != nil || stats == nil {
		return 0, err
	}
	rank, err := pc.Source.Rank(ctx, pc.UserID, stats.TotalWeightedPoints)
	if err != nil {
		return 0, err
	}
	return boolProgress(rank <= topRankThreshold), nil
}
