package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/studyhost/studyhost/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// JSONPayload builds a JSON column value from a raw JSON string
func JSONPayload(raw string) models.JSON {
	return models.JSON{JSON: datatypes.JSON(raw)}
}

// OpenTestDB creates an in-memory SQLite database with the full schema.
// The pure Go driver keeps the unit tests free of cgo.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Experiment{},
		&models.ExperimentData{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}
