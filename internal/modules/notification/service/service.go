package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"pivoine.art/gamification/internal/entity"
)

const TypeAchievementUnlocked = "achievement_unlocked"

// Notification is the JSON pushed to a user's channel and forwarded as is
// to their websocket.
type Notification struct {
	Type        string              `json:"type"`
	UserID      uuid.UUID           `json:"user_id"`
	Achievement *AchievementPayload `json:"achievement,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type AchievementPayload struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Category     string `json:"category"`
	PointsReward int    `json:"points_reward"`
}

type NotificationService interface {
	AchievementUnlocked(ctx context.Context, userID uuid.UUID, achievement entity.Achievement) error
	Publish(ctx context.Context, n Notification) error
}

type notificationService struct {
	redisClient *redis.Client
	now         func() time.Time
}

// NewNotificationService publishes through redis. With a nil client every
// publish is a no-op.
func NewNotificationService(redisClient *redis.Client) NotificationService {
	return &notificationService{
		redisClient: redisClient,
		now:         time.Now,
	}
}

// Channel is the pub/sub channel of one user.
func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

func (s *notificationService) AchievementUnlocked(ctx context.Context, userID uuid.UUID, a entity.Achievement) error {
	return s.Publish(ctx, Notification{
		Type:   TypeAchievementUnlocked,
		UserID: userID,
		Achievement: &AchievementPayload{
			Code:         a.Code,
			Name:         a.Name,
			Icon:         a.Icon,
			Category:     a.Category,
			PointsReward: a.PointsReward,
		},
		CreatedAt: s.now(),
	})
}

func (s *notificationService) Publish(ctx context.Context, n Notification) error {
	if s.redisClient == nil {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.redisClient.Publish(ctx, Channel(n.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
