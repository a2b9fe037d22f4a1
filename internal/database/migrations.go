package database

import (
	"errors"
	"time"

	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDeckThemes = "2026-08-12_backfill_deck_themes"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillDeckThemes, apply: backfillDeckThemes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillDeckThemes stamps the default palette onto decks created before the
// theme column existed.
func backfillDeckThemes(db *gorm.DB) error {
	return db.Model(&slides.DeckRow{}).
		Where("theme_id = '' OR theme_id IS NULL").
		Update("theme_id", slides.ThemeByID("").ID).Error
}
