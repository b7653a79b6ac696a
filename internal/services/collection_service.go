package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission is the participant-facing envelope accepted by the public
// collection endpoint. Data is opaque beyond presence validation.
type Submission struct {
	SessionID   string          `json:"session_id"`
	ProlificPID string          `json:"prolific_pid"`
	Data        json.RawMessage `json:"data"`
}

// CollectionService persists participant submissions
type CollectionService struct {
	DB     *gorm.DB
	Assets *storage.Store
}

// Submit appends one data row for a live experiment. Duplicate submissions
// create duplicate rows; deduplication is the caller's responsibility. The
// database write is authoritative; the file mirror is best effort and its
// failure is logged, never surfaced.
func (s *CollectionService) Submit(experimentID string, sub Submission) (*models.ExperimentData, error) {
	if sub.SessionID == "" || len(sub.Data) == 0 || string(sub.Data) == "null" {
		return nil, fmt.Errorf("%w: session_id and data are required", ErrValidation)
	}

	var exp models.Experiment
	if err := s.DB.First(&exp, "id = ?", experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Stale participant links must not write into retired studies.
	if !exp.Live {
		return nil, ErrNotLive
	}

	row := models.ExperimentData{
		ExperimentID: exp.ID,
		SessionID:    sub.SessionID,
		ProlificPID:  sub.ProlificPID,
		Data:         models.JSON{JSON: datatypes.JSON(sub.Data)},
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to save data: %w", err)
	}

	if _, err := s.Assets.MirrorSession(exp.ID, sub.SessionID, sub.Data); err != nil {
		log.Printf("Failed to mirror session %s for experiment %s: %v", sub.SessionID, exp.ID, err)
	}

	return &row, nil
}
