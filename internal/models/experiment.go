package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prolific study lifecycle states mirrored on the experiment record.
const (
	ProlificStatusDraft     = "draft"
	ProlificStatusPublished = "published"
	ProlificStatusCompleted = "completed"
)

// Experiment is a researcher-owned study. CompletionCode is assigned exactly
// once, on the first transition to live, and never changes afterwards.
type Experiment struct {
	ID          string `gorm:"type:char(36);primaryKey"`
	UserID      string `gorm:"type:char(36);not null;index"`
	Title       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`

	Live           bool   `gorm:"not null;default:false"`
	CompletionCode string `gorm:"size:32"`

	// Prolific recruitment linkage
	ProlificStudyID string `gorm:"column:prolific_study_id;size:255"`
	ProlificStatus  string `gorm:"column:prolific_status;size:32"`

	// DataPipe/OSF archival linkage. All three must be explicitly configured
	// before sync is allowed.
	DatapipeExperimentID string `gorm:"column:datapipe_experiment_id;size:255"`
	DatapipeProjectID    string `gorm:"column:datapipe_project_id;size:255"`
	DatapipeComponentID  string `gorm:"column:datapipe_component_id;size:255"`

	// Retention policy in days; 0 disables auto-delete.
	AutoDeleteDays int `gorm:"not null;default:0"`

	FilesPath string `gorm:"size:512"`

	CreatedAt time.Time

	Data []ExperimentData `gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns a UUID primary key
func (e *Experiment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// TableName overrides the table name for Experiment
func (Experiment) TableName() string {
	return "experiments"
}

// DatapipeConfigured reports whether archival sync may proceed. Sync never
// defaults missing configuration.
func (e *Experiment) DatapipeConfigured() bool {
	return e.DatapipeExperimentID != "" && e.DatapipeProjectID != "" && e.DatapipeComponentID != ""
}
