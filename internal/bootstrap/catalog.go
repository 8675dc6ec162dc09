package bootstrap

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"pivoine.art/gamification/internal/entity"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	"pivoine.art/gamification/pkg/validator"
)

// CatalogEntry is one achievement definition as written in a catalog file.
type CatalogEntry struct {
	Code          string `koanf:"code" binding:"required,max=100"`
	Name          string `koanf:"name" binding:"required,max=255"`
	Description   string `koanf:"description"`
	Icon          string `koanf:"icon" binding:"max=100"`
	Category      string `koanf:"category" binding:"required,oneof=recordings playback social special"`
	RequiredCount int    `koanf:"required_count" binding:"min=1"`
	PointsReward  int    `koanf:"points_reward" binding:"min=0"`
	Sort          int    `koanf:"sort"`
	Status        string `koanf:"status" binding:"omitempty,oneof=published draft"`
}

func (e CatalogEntry) toEntity() entity.Achievement {
	status := e.Status
	if status == "" {
		status = entity.AchievementStatusPublished
	}
	return entity.Achievement{
		Code:          e.Code,
		Name:          e.Name,
		Description:   e.Description,
		Icon:          e.Icon,
		Category:      e.Category,
		RequiredCount: e.RequiredCount,
		PointsReward:  e.PointsReward,
		Sort:          e.Sort,
		Status:        status,
	}
}

// LoadCatalog reads a YAML file with a top-level "achievements" list.
// An empty path yields the built-in catalog.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load achievement catalog %s: %w", path, err)
	}

	var entries []CatalogEntry
	if err := k.UnmarshalWithConf("achievements", &entries, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode achievement catalog %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("achievement catalog %s has no achievements", path)
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if err := validator.Struct(e); err != nil {
			return nil, fmt.Errorf("achievement #%d (%s): %s", i+1, e.Code, validator.FormatValidationError(err))
		}
		if _, dup := seen[e.Code]; dup {
			return nil, fmt.Errorf("achievement code %q appears twice", e.Code)
		}
		seen[e.Code] = struct{}{}
	}
	return entries, nil
}

// Unevaluable returns the catalog codes the registry has no progress function
// for. Those achievements stay at progress 0 and never unlock.
func Unevaluable(catalog []CatalogEntry, registry *gamification.Registry) []string {
	var codes []string
	for _, e := range catalog {
		if !registry.Has(e.Code) {
			codes = append(codes, e.Code)
		}
	}
	return codes
}

// DefaultCatalog covers every code the engine knows how to evaluate.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Code: "first_recording", Name: "First Recording", Description: "Publish your first recording", Icon: "🎬", Category: entity.CategoryRecordings, RequiredCount: 1, PointsReward: 50, Sort: 10},
		{Code: "recording_10", Name: "Prolific", Description: "Publish 10 recordings", Icon: "📼", Category: entity.CategoryRecordings, RequiredCount: 10, PointsReward: 100, Sort: 20},
		{Code: "recording_50", Name: "Studio Regular", Description: "Publish 50 recordings", Icon: "🎞️", Category: entity.CategoryRecordings, RequiredCount: 50, PointsReward: 250, Sort: 30},
		{Code: "recording_100", Name: "Centurion", Description: "Publish 100 recordings", Icon: "🏛️", Category: entity.CategoryRecordings, RequiredCount: 100, PointsReward: 500, Sort: 40},
		{Code: "featured_recording", Name: "In the Spotlight", Description: "Have a recording featured", Icon: "⭐", Category: entity.CategoryRecordings, RequiredCount: 1, PointsReward: 200, Sort: 50},

		{Code: "first_play", Name: "First Play", Description: "Play a recording by another creator", Icon: "▶️", Category: entity.CategoryPlayback, RequiredCount: 1, PointsReward: 10, Sort: 110},
		{Code: "play_100", Name: "Listener", Description: "Play 100 recordings by other creators", Icon: "🎧", Category: entity.CategoryPlayback, RequiredCount: 100, PointsReward: 100, Sort: 120},
		{Code: "play_500", Name: "Devotee", Description: "Play 500 recordings by other creators", Icon: "💿", Category: entity.CategoryPlayback, RequiredCount: 500, PointsReward: 250, Sort: 130},
		{Code: "completionist_10", Name: "Completionist", Description: "Finish 10 recordings", Icon: "✅", Category: entity.CategoryPlayback, RequiredCount: 10, PointsReward: 50, Sort: 140},
		{Code: "completionist_100", Name: "Completionist Pro", Description: "Finish 100 recordings", Icon: "🏁", Category: entity.CategoryPlayback, RequiredCount: 100, PointsReward: 200, Sort: 150},

		{Code: "first_comment", Name: "First Words", Description: "Comment on a recording", Icon: "💬", Category: entity.CategorySocial, RequiredCount: 1, PointsReward: 10, Sort: 210},
		{Code: "comment_50", Name: "Conversationalist", Description: "Comment on recordings 50 times", Icon: "🗨️", Category: entity.CategorySocial, RequiredCount: 50, PointsReward: 100, Sort: 220},
		{Code: "comment_250", Name: "Critic", Description: "Comment on recordings 250 times", Icon: "📝", Category: entity.CategorySocial, RequiredCount: 250, PointsReward: 250, Sort: 230},

		{Code: "early_adopter", Name: "Early Adopter", Description: "Joined within a month of launch", Icon: "🌱", Category: entity.CategorySpecial, RequiredCount: 1, PointsReward: 100, Sort: 310},
		{Code: "one_year", Name: "One Year In", Description: "Member for a full year", Icon: "🎂", Category: entity.CategorySpecial, RequiredCount: 1, PointsReward: 100, Sort: 320},
		{Code: "balanced_creator", Name: "Balanced Creator", Description: "50 recordings published and 100 plays of others' work", Icon: "⚖️", Category: entity.CategorySpecial, RequiredCount: 1, PointsReward: 300, Sort: 330},
		{Code: "top_10_rank", Name: "Top 10", Description: "Reach the top 10 of the leaderboard", Icon: "🏆", Category: entity.CategorySpecial, RequiredCount: 1, PointsReward: 500, Sort: 340},
	}
}
