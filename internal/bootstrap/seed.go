package bootstrap

import (
	"context"

	"gorm.io/gorm"
	"pivoine.art/gamification/internal/entity"
	"pivoine.art/gamification/pkg/logger"
)

// Models lists the tables the engine owns.
func Models() []interface{} {
	return []interface{}{
		&entity.PointEntry{},
		&entity.UserStats{},
		&entity.Achievement{},
		&entity.UserAchievement{},
	}
}

// Migrate creates the engine's own tables. The CMS collections it reads
// (users, recordings, plays, comments) are never touched, including through
// relations such as UserStats.User.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// SeedAchievements inserts catalog entries whose code is missing. Existing
// rows are left alone so edits made in the CMS survive restarts.
func SeedAchievements(ctx context.Context, db *gorm.DB, catalog []CatalogEntry, log logger.Logger) (int, error) {
	var existing []string
	if err := db.WithContext(ctx).Model(&entity.Achievement{}).Pluck("code", &existing).Error; err != nil {
		return 0, err
	}

	have := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		have[code] = struct{}{}
	}

	created := 0
	for _, e := range catalog {
		if _, ok := have[e.Code]; ok {
			continue
		}
		achievement := e.toEntity()
		if err := db.WithContext(ctx).Create(&achievement).Error; err != nil {
			return created, err
		}
		have[e.Code] = struct{}{}
		created++
	}

	if created > 0 {
		log.Info("achievements seeded", logger.Int("created", created), logger.Int("catalog", len(catalog)))
	}
	return created, nil
}
