package models

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDataBase Open the sqlite database and migrate the note tables
func ConnectDataBase(filename string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect sqlite database at %s: %w", filename, err)
	}
	log.Info(fmt.Sprintf("Connecting sqlite database at %s", filename))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate Create or update the note tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ScreenshotNote{}, &LegacyScreenshotNote{}); err != nil {
		return fmt.Errorf("migrating note tables: %w", err)
	}
	return nil
}
