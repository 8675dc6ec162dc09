package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AchievementStatusPublished = "published"
	AchievementStatusDraft     = "draft"
)

// Achievement categories. An evaluation can be narrowed to one of them.
const (
	CategoryRecordings = "recordings"
	CategoryPlayback   = "playback"
	CategorySocial     = "social"
	CategorySpecial    = "special"
)

// PointEntry is one row of the append-only points ledger.
type PointEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;index:idx_points_user_date,priority:1;not null" json:"user_id"`
	Action      string     `gorm:"size:100;not null" json:"action"` // RECORDING_CREATE, ..., ACHIEVEMENT_<code>
	Points      int        `gorm:"not null" json:"points"`
	RecordingID *uuid.UUID `gorm:"type:uuid" json:"recording_id,omitempty"`
	DateCreated time.Time  `gorm:"index:idx_points_user_date,priority:2;not null" json:"date_created"`
}

func (PointEntry) TableName() string { return "sexy_user_points" }

// UserStats is a materialized view over the ledger and the CMS collections.
// It is only ever produced by a full recompute.
type UserStats struct {
	UserID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User                User      `gorm:"foreignKey:UserID;-:migration" json:"-"`
	TotalRawPoints      int64     `gorm:"not null;default:0" json:"total_raw_points"`
	TotalWeightedPoints float64   `gorm:"not null;default:0;index" json:"total_weighted_points"`
	RecordingsCount     int64     `gorm:"not null;default:0" json:"recordings_count"`
	PlaybacksCount      int64     `gorm:"not null;default:0" json:"playbacks_count"`
	CommentsCount       int64     `gorm:"not null;default:0" json:"comments_count"`
	AchievementsCount   int64     `gorm:"not null;default:0" json:"achievements_count"`
	LastUpdated         time.Time `json:"last_updated"`
}

func (UserStats) TableName() string { return "sexy_user_stats" }

// Achievement is a catalog definition, managed outside the engine.
type Achievement struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string    `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Icon          string    `gorm:"size:100" json:"icon"`
	Category      string    `gorm:"size:50;index;not null" json:"category"`
	RequiredCount int       `gorm:"not null;default:1" json:"required_count"`
	PointsReward  int       `gorm:"not null;default:0" json:"points_reward"`
	Sort          int       `gorm:"not null;default:0" json:"sort"`
	Status        string    `gorm:"size:20;not null;default:published" json:"status"`
}

func (Achievement) TableName() string { return "sexy_achievements" }

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// UserAchievement tracks progress of one user on one achievement.
// DateUnlocked is sticky: once set it is never cleared.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_user_achievement,priority:1;not null" json:"user_id"`
	AchievementID uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_user_achievement,priority:2;not null" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
	Progress      int         `gorm:"not null;default:0" json:"progress"`
	DateUnlocked  *time.Time  `json:"date_unlocked"`
}

func (UserAchievement) TableName() string { return "sexy_user_achievements" }

func (ua *UserAchievement) Unlocked() bool {
	return ua.DateUnlocked != nil
}
