package dto

import (
	"time"

	"github.com/google/uuid"
	commonDto "pivoine.art/gamification/pkg/dto"
)

// EventRequest is the payload of the events webhook and of messages on the
// redis events channel.
type EventRequest struct {
	Type        string `json:"type" binding:"required,oneof=recording.published recording.featured recording.played recording.completed comment.created"`
	UserID      string `json:"user_id" binding:"omitempty,uuid"`
	RecordingID string `json:"recording_id" binding:"omitempty,uuid"`
	Collection  string `json:"collection"`
}

type LeaderboardQuery struct {
	commonDto.PageQuery
}

type AchievementsQuery struct {
	Category string `form:"category" binding:"omitempty,oneof=recordings playback social special"`
}

type ScoreQuery struct {
	AsOf string `form:"as_of"`
}

// LeaderboardEntry is one ranked row. Rank is offset + 1-based position.
type LeaderboardEntry struct {
	Rank                int64      `json:"rank"`
	UserID              uuid.UUID  `json:"user_id"`
	DisplayName         string     `json:"display_name"`
	Slug                string     `json:"slug,omitempty"`
	Avatar              *uuid.UUID `json:"avatar,omitempty"`
	TotalWeightedPoints float64    `json:"total_weighted_points"`
	TotalRawPoints      int64      `json:"total_raw_points"`
	RecordingsCount     int64      `json:"recordings_count"`
	PlaybacksCount      int64      `json:"playbacks_count"`
	AchievementsCount   int64      `json:"achievements_count"`
}

type LeaderboardResponse = commonDto.PaginatedResponse[LeaderboardEntry]

type StatsResponse struct {
	TotalRawPoints      int64      `json:"total_raw_points"`
	TotalWeightedPoints float64    `json:"total_weighted_points"`
	RecordingsCount     int64      `json:"recordings_count"`
	PlaybacksCount      int64      `json:"playbacks_count"`
	CommentsCount       int64      `json:"comments_count"`
	AchievementsCount   int64      `json:"achievements_count"`
	LastUpdated         *time.Time `json:"last_updated"`
}

type AchievementResponse struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Category      string    `json:"category"`
	RequiredCount int       `json:"required_count"`
	PointsReward  int       `json:"points_reward"`
	Sort          int       `json:"sort"`
}

type UnlockedAchievementResponse struct {
	AchievementResponse
	Progress     int       `json:"progress"`
	DateUnlocked time.Time `json:"date_unlocked"`
}

// PointEntryResponse carries both the awarded value and what it is worth now.
type PointEntryResponse struct {
	Action        string     `json:"action"`
	Points        int        `json:"points"`
	DecayedPoints float64    `json:"decayed_points"`
	RecordingID   *uuid.UUID `json:"recording_id,omitempty"`
	DateCreated   time.Time  `json:"date_created"`
}

type UserSummaryResponse struct {
	UserID       uuid.UUID                     `json:"user_id"`
	DisplayName  string                        `json:"display_name"`
	Avatar       *uuid.UUID                    `json:"avatar,omitempty"`
	Stats        StatsResponse                 `json:"stats"`
	Rank         *int64                        `json:"rank"`
	Achievements []UnlockedAchievementResponse `json:"achievements"`
	RecentPoints []PointEntryResponse          `json:"recent_points"`
}

type ScoreResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	AsOf          time.Time `json:"as_of"`
	WeightedScore float64   `json:"weighted_score"`
}
