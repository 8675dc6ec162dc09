package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"pivoine.art/gamification/internal/entity"
	"pivoine.art/gamification/internal/modules/gamification/scoring"
	"pivoine.art/gamification/pkg/apperror"
)

// GamificationRepository is the storage port of the engine. The points
// ledger is append-only: there is no update or delete for PointEntry.
type GamificationRepository interface {
	FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindRecording(ctx context.Context, id uuid.UUID) (*entity.Recording, error)

	CreatePointEntry(ctx context.Context, entry *entity.PointEntry) error
	SumPoints(ctx context.Context, userID uuid.UUID) (int64, error)
	WeightedScore(ctx context.Context, userID uuid.UUID, asOf time.Time) (float64, error)
	RecentPointEntries(ctx context.Context, userID uuid.UUID, limit int) ([]entity.PointEntry, error)

	CountPublishedRecordings(ctx context.Context, userID uuid.UUID) (int64, error)
	CountFeaturedRecordings(ctx context.Context, userID uuid.UUID) (int64, error)
	CountQualifyingPlays(ctx context.Context, userID uuid.UUID) (int64, error)
	CountCompletedPlays(ctx context.Context, userID uuid.UUID) (int64, error)
	CountRecordingComments(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnlockedAchievements(ctx context.Context, userID uuid.UUID) (int64, error)

	UpsertUserStats(ctx context.Context, stats *entity.UserStats) error
	FindUserStats(ctx context.Context, userID uuid.UUID) (*entity.UserStats, error)
	Rank(ctx context.Context, userID uuid.UUID, weighted float64) (int64, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]entity.UserStats, error)
	ListKnownUserIDs(ctx context.Context) ([]uuid.UUID, error)

	ListAchievements(ctx context.Context, category string) ([]entity.Achievement, error)
	UpsertAchievementProgress(ctx context.Context, userID, achievementID uuid.UUID, progress int) error
	UnlockAchievement(ctx context.Context, userID, achievementID uuid.UUID, at time.Time, bonus *entity.PointEntry) (bool, error)
	ListUnlockedAchievements(ctx context.Context, userID uuid.UUID) ([]entity.UserAchievement, error)
}

type gamificationRepository struct {
	db *gorm.DB
}

func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gamificationRepository) FindRecording(ctx context.Context, id uuid.UUID) (*entity.Recording, error) {
	var rec entity.Recording
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrRecordingNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gamificationRepository) CreatePointEntry(ctx context.Context, entry *entity.PointEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gamificationRepository) SumPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.PointEntry{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// WeightedScore evaluates the decay sum in the database so the ledger never
// has to be loaded into memory. Bind parameters are cast explicitly: an
// untyped parameter under an arithmetic operator is ambiguous to postgres.
func (r *gamificationRepository) WeightedScore(ctx context.Context, userID uuid.UUID, asOf time.Time) (float64, error) {
	var score float64
	err := r.db.WithContext(ctx).Model(&entity.PointEntry{}).
		Select("COALESCE(SUM(points * EXP(CAST(? AS double precision) * EXTRACT(EPOCH FROM (CAST(? AS timestamptz) - date_created)) / CAST(? AS double precision))), 0)",
			-scoring.DecayLambda, asOf, float64(scoring.SecondsPerDay)).
		Where("user_id = ?", userID).
		Scan(&score).Error
	return score, err
}

func (r *gamificationRepository) RecentPointEntries(ctx context.Context, userID uuid.UUID, limit int) ([]entity.PointEntry, error) {
	var entries []entity.PointEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date_created DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *gamificationRepository) CountPublishedRecordings(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Recording{}).
		Where("user_created = ? AND status = ?", userID, entity.RecordingStatusPublished).
		Count(&count).Error
	return count, err
}

func (r *gamificationRepository) CountFeaturedRecordings(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Recording{}).
		Where("user_created = ? AND status = ? AND featured = ?", userID, entity.RecordingStatusPublished, true).
		Count(&count).Error
	return count, err
}

// CountQualifyingPlays counts plays by the user on recordings that exist and
// are owned by someone else. Stats and achievements share this definition.
func (r *gamificationRepository) CountQualifyingPlays(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("sexy_recording_plays AS p").
		Joins("JOIN sexy_recordings AS r ON r.id = p.recording_id").
		Where("p.user_id = ? AND r.user_created <> ?", userID, userID).
		Count(&count).Error
	return count, err
}

func (r *gamificationRepository) CountCompletedPlays(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RecordingPlay{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Count(&count).Error
	return count, err
}

func (r *gamificationRepository) CountRecordingComments(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Comment{}).
		Where("user_created = ? AND collection = ?", userID, entity.CollectionRecordings).
		Count(&count).Error
	return count, err
}

func (r *gamificationRepository) CountUnlockedAchievements(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.UserAchievement{}).
		Where("user_id = ? AND date_unlocked IS NOT NULL", userID).
		Count(&count).Error
	return count, err
}

// UpsertUserStats replaces the whole row in one statement.
func (r *gamificationRepository) UpsertUserStats(ctx context.Context, stats *entity.UserStats) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(stats).Error
}

// FindUserStats returns nil without error for a user that was never refreshed.
func (r *gamificationRepository) FindUserStats(ctx context.Context, userID uuid.UUID) (*entity.UserStats, error) {
	var stats entity.UserStats
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// Rank is the 1-based position of the user under the leaderboard order
// (weighted points descending, user id ascending).
func (r *gamificationRepository) Rank(ctx context.Context, userID uuid.UUID, weighted float64) (int64, error) {
	var ahead int64
	err := r.db.WithContext(ctx).Model(&entity.UserStats{}).
		Where("total_weighted_points > ? OR (total_weighted_points = ? AND user_id < ?)", weighted, weighted, userID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (r *gamificationRepository) Leaderboard(ctx context.Context, limit, offset int) ([]entity.UserStats, error) {
	var stats []entity.UserStats
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("total_weighted_points DESC, user_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&stats).Error
	return stats, err
}

// ListKnownUserIDs returns every user with a stats row or at least one
// ledger entry, so users whose refresh failed after an award are included.
func (r *gamificationRepository) ListKnownUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Raw("SELECT user_id FROM sexy_user_stats UNION SELECT DISTINCT user_id FROM sexy_user_points").
		Scan(&ids).Error
	return ids, err
}

func (r *gamificationRepository) ListAchievements(ctx context.Context, category string) ([]entity.Achievement, error) {
	var achievements []entity.Achievement
	query := r.db.WithContext(ctx).Where("status = ?", entity.AchievementStatusPublished)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("sort ASC, code ASC").Find(&achievements).Error
	return achievements, err
}

// UpsertAchievementProgress creates the row locked or updates its progress.
// date_unlocked is never part of the update.
func (r *gamificationRepository) UpsertAchievementProgress(ctx context.Context, userID, achievementID uuid.UUID, progress int) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"progress"}),
		}).
		Create(&entity.UserAchievement{
			UserID:        userID,
			AchievementID: achievementID,
			Progress:      progress,
		}).Error
}

// UnlockAchievement sets date_unlocked if it is still null and, in the same
// transaction, appends the bonus entry when one is given. It reports whether
// this call made the transition. A failed bonus insert rolls the unlock back.
func (r *gamificationRepository) UnlockAchievement(ctx context.Context, userID, achievementID uuid.UUID, at time.Time, bonus *entity.PointEntry) (bool, error) {
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.UserAchievement{}).
			Where("user_id = ? AND achievement_id = ? AND date_unlocked IS NULL", userID, achievementID).
			Update("date_unlocked", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if bonus != nil {
			if err := tx.Create(bonus).Error; err != nil {
				return err
			}
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

func (r *gamificationRepository) ListUnlockedAchievements(ctx context.Context, userID uuid.UUID) ([]entity.UserAchievement, error) {
	var unlocked []entity.UserAchievement
	err := r.db.WithContext(ctx).
		Joins("Achievement").
		Where("sexy_user_achievements.user_id = ? AND sexy_user_achievements.date_unlocked IS NOT NULL", userID).
		Order(`"Achievement"."sort" ASC`).
		Find(&unlocked).Error
	return unlocked, err
}
