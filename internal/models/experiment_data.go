package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExperimentData is one participant submission. Rows are append-only: after
// creation only the sync flag and timestamp are ever updated.
type ExperimentData struct {
	ID           string `gorm:"type:char(36);primaryKey"`
	ExperimentID string `gorm:"type:char(36);not null;index"`
	SessionID    string `gorm:"size:255;not null"`
	ProlificPID  string `gorm:"column:prolific_pid;size:255"`

	// Arbitrary participant trial data, commonly a jsPsych trial array.
	// No schema is enforced beyond envelope validation at the boundary.
	Data JSON `gorm:"type:json;not null"`

	SyncedToOSF bool       `gorm:"column:synced_to_osf;not null;default:false;index"`
	SyncedAt    *time.Time `gorm:"column:synced_at"`

	CreatedAt time.Time
}

// BeforeCreate assigns a UUID primary key
func (d *ExperimentData) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// TableName overrides the table name for ExperimentData
func (ExperimentData) TableName() string {
	return "experiment_data"
}
