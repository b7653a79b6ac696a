package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/studyhost/studyhost/internal/models"
	"gorm.io/gorm"
)

// SyncFailure records one row that could not be archived
type SyncFailure struct {
	ParticipantID string `json:"participant_id"`
	Error         string `json:"error"`
}

// SyncResult summarizes a sync batch. Partial failure is expected and
// reported, not fatal; failed rows stay unsynced until the caller re-invokes
// sync.
type SyncResult struct {
	Success []string      `json:"success"`
	Failed  []SyncFailure `json:"failed"`
	Total   int           `json:"total"`
}

// SyncService pushes unsynced participant data to the archival service
type SyncService struct {
	DB       *gorm.DB
	Datapipe *DatapipeClient
}

// SyncExperiment archives all unsynced rows of one experiment. The sync flag
// is set with a conditional update (WHERE synced_to_osf = false) so that
// concurrent sync invocations cannot double-mark a row.
func (s *SyncService) SyncExperiment(ctx context.Context, exp *models.Experiment) (SyncResult, error) {
	if !exp.DatapipeConfigured() {
		return SyncResult{}, fmt.Errorf("%w: DataPipe is not configured for this experiment", ErrConflict)
	}

	var rows []models.ExperimentData
	err := s.DB.Where("experiment_id = ? AND synced_to_osf = ?", exp.ID, false).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		Success: []string{},
		Failed:  []SyncFailure{},
		Total:   len(rows),
	}

	for i := range rows {
		row := &rows[i]
		filename := fmt.Sprintf("%s.json", row.SessionID)

		if err := s.Datapipe.SendData(ctx, exp.DatapipeExperimentID, filename, []byte(row.Data.JSON)); err != nil {
			log.Printf("Failed to sync participant %s: %v", row.ID, err)
			result.Failed = append(result.Failed, SyncFailure{
				ParticipantID: row.ID,
				Error:         err.Error(),
			})
			continue
		}

		now := time.Now()
		res := s.DB.Model(&models.ExperimentData{}).
			Where("id = ? AND synced_to_osf = ?", row.ID, false).
			Updates(map[string]interface{}{"synced_to_osf": true, "synced_at": now})
		if res.Error != nil {
			result.Failed = append(result.Failed, SyncFailure{
				ParticipantID: row.ID,
				Error:         res.Error.Error(),
			})
			continue
		}
		// RowsAffected 0 means a concurrent sync already claimed the row;
		// the data reached the archive either way.
		result.Success = append(result.Success, row.ID)
	}

	return result, nil
}

// SyncStatus reports sync progress for one experiment
type SyncStatus struct {
	ExperimentID       string     `json:"experiment_id"`
	DatapipeConfigured bool       `json:"datapipe_configured"`
	TotalDataPoints    int64      `json:"total_data_points"`
	SyncedDataPoints   int64      `json:"synced_data_points"`
	UnsyncedDataPoints int64      `json:"unsynced_data_points"`
	LastSync           *time.Time `json:"last_sync"`
}

// Status computes sync counters for one experiment
func (s *SyncService) Status(exp *models.Experiment) (SyncStatus, error) {
	status := SyncStatus{
		ExperimentID:       exp.ID,
		DatapipeConfigured: exp.DatapipeConfigured(),
	}

	if err := s.DB.Model(&models.ExperimentData{}).
		Where("experiment_id = ?", exp.ID).
		Count(&status.TotalDataPoints).Error; err != nil {
		return status, err
	}
	if err := s.DB.Model(&models.ExperimentData{}).
		Where("experiment_id = ? AND synced_to_osf = ?", exp.ID, true).
		Count(&status.SyncedDataPoints).Error; err != nil {
		return status, err
	}
	status.UnsyncedDataPoints = status.TotalDataPoints - status.SyncedDataPoints

	var last models.ExperimentData
	err := s.DB.Where("experiment_id = ? AND synced_to_osf = ?", exp.ID, true).
		Order("synced_at DESC").
		First(&last).Error
	if err == nil {
		status.LastSync = last.SyncedAt
	} else if err != gorm.ErrRecordNotFound {
		return status, err
	}

	return status, nil
}
