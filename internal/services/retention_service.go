// retention_service.go
//
// A self-hostable platform for running browser-based behavioral experiments
// Copyright (c) 2026 StudyHost contributors
//
// This file is part of studyhost.
// studyhost is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// studyhost is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with studyhost.
// If not, see <https://www.gnu.org/licenses/>.

package services

import (
	"log"
	"time"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/storage"
	"gorm.io/gorm"
)

// SweepResult reports the outcome of a sweep for one experiment
type SweepResult struct {
	ExperimentID    string `json:"experiment_id"`
	ExperimentTitle string `json:"experiment_title"`
	DeletedCount    int64  `json:"deleted_count"`
	AutoDeleteDays  int    `json:"auto_delete_days"`
	Retired         bool   `json:"retired"`
}

// SweepSummary aggregates a sweep run
type SweepSummary struct {
	TotalDeleted int64         `json:"total_deleted"`
	Experiments  []SweepResult `json:"experiments"`
}

// RetentionService deletes synced participant data once it exceeds each
// experiment's auto_delete_days threshold. Sweeps run on explicit
// invocation only and are idempotent: a second run immediately after a
// sweep finds nothing eligible.
type RetentionService struct {
	DB     *gorm.DB
	Assets *storage.Store
	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time
}

func (s *RetentionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SweepUser sweeps every retention-enabled experiment owned by one user
func (s *RetentionService) SweepUser(userID string) (SweepSummary, error) {
	var exps []models.Experiment
	err := s.DB.Where("user_id = ? AND auto_delete_days > 0", userID).Find(&exps).Error
	if err != nil {
		return SweepSummary{}, err
	}
	return s.sweep(exps)
}

// SweepAll sweeps every retention-enabled experiment regardless of owner.
// Used by the sweep CLI.
func (s *RetentionService) SweepAll() (SweepSummary, error) {
	var exps []models.Experiment
	if err := s.DB.Where("auto_delete_days > 0").Find(&exps).Error; err != nil {
		return SweepSummary{}, err
	}
	return s.sweep(exps)
}

func (s *RetentionService) sweep(exps []models.Experiment) (SweepSummary, error) {
	summary := SweepSummary{Experiments: []SweepResult{}}

	for i := range exps {
		result, err := s.sweepExperiment(&exps[i])
		if err != nil {
			return summary, err
		}
		if result.DeletedCount > 0 {
			summary.Experiments = append(summary.Experiments, result)
			summary.TotalDeleted += result.DeletedCount
		}
	}

	return summary, nil
}

// sweepExperiment deletes aged synced rows for one experiment. Unsynced
// rows are never eligible regardless of age. Database rows are deleted
// first; session mirror files are removed best effort afterwards, so a
// failed file removal can leave an orphaned mirror behind.
func (s *RetentionService) sweepExperiment(exp *models.Experiment) (SweepResult, error) {
	result := SweepResult{
		ExperimentID:    exp.ID,
		ExperimentTitle: exp.Title,
		AutoDeleteDays:  exp.AutoDeleteDays,
	}

	cutoff := s.now().AddDate(0, 0, -exp.AutoDeleteDays)

	var expired []models.ExperimentData
	err := s.DB.Select("id", "session_id").
		Where("experiment_id = ? AND synced_to_osf = ? AND synced_at < ?", exp.ID, true, cutoff).
		Find(&expired).Error
	if err != nil {
		return result, err
	}
	if len(expired) == 0 {
		return result, nil
	}

	ids := make([]string, len(expired))
	for i, row := range expired {
		ids[i] = row.ID
	}

	res := s.DB.Where("id IN ?", ids).Delete(&models.ExperimentData{})
	if res.Error != nil {
		return result, res.Error
	}
	result.DeletedCount = res.RowsAffected

	for _, row := range expired {
		if err := s.Assets.RemoveSessionMirrors(exp.ID, row.SessionID); err != nil {
			log.Printf("Failed to remove session mirrors for %s/%s: %v", exp.ID, row.SessionID, err)
		}
	}

	// Auto-retire once every collected row has aged out.
	var remaining int64
	if err := s.DB.Model(&models.ExperimentData{}).
		Where("experiment_id = ?", exp.ID).
		Count(&remaining).Error; err != nil {
		return result, err
	}
	if remaining == 0 && exp.Live {
		if err := s.DB.Model(exp).Update("live", false).Error; err != nil {
			return result, err
		}
		exp.Live = false
		result.Retired = true
	}

	return result, nil
}
