// data_service.go
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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/storage"
	"gorm.io/gorm"
)

// DataService gives researchers access to their collected data
type DataService struct {
	DB     *gorm.DB
	Assets *storage.Store
}

// ownedExperiment loads an experiment owned by the caller
func (s *DataService) ownedExperiment(userID, experimentID string) (*models.Experiment, error) {
	var exp models.Experiment
	err := s.DB.Where("id = ? AND user_id = ?", experimentID, userID).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exp, nil
}

// List returns all data rows for an experiment, newest first
func (s *DataService) List(userID, experimentID string) (*models.Experiment, []models.ExperimentData, error) {
	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.ExperimentData
	err = s.DB.Where("experiment_id = ?", exp.ID).
		Order("created_at DESC").
		Find(&rows).Error
	return exp, rows, err
}

// Get returns one data row
func (s *DataService) Get(userID, experimentID, rowID string) (*models.ExperimentData, error) {
	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return nil, err
	}

	var row models.ExperimentData
	err = s.DB.Where("id = ? AND experiment_id = ?", rowID, exp.ID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// DeleteRow deletes one participant's data row and its session mirrors
func (s *DataService) DeleteRow(userID, experimentID, rowID string) error {
	row, err := s.Get(userID, experimentID, rowID)
	if err != nil {
		return err
	}

	if err := s.DB.Delete(row).Error; err != nil {
		return err
	}

	if err := s.Assets.RemoveSessionMirrors(experimentID, row.SessionID); err != nil {
		log.Printf("Failed to remove session mirrors for %s/%s: %v", experimentID, row.SessionID, err)
	}
	return nil
}

// DeleteAll deletes every data row for an experiment
func (s *DataService) DeleteAll(userID, experimentID string) (int64, error) {
	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return 0, err
	}

	res := s.DB.Where("experiment_id = ?", exp.ID).Delete(&models.ExperimentData{})
	return res.RowsAffected, res.Error
}

// DeleteSynced deletes only rows already archived
func (s *DataService) DeleteSynced(userID, experimentID string) (int64, error) {
	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return 0, err
	}

	res := s.DB.Where("experiment_id = ? AND synced_to_osf = ?", exp.ID, true).
		Delete(&models.ExperimentData{})
	return res.RowsAffected, res.Error
}

// ConfigureDatapipe records the archival linkage on an experiment. All ids
// must be supplied explicitly; missing configuration is never defaulted.
func (s *DataService) ConfigureDatapipe(userID, experimentID, projectID, componentID, datapipeExperimentID string) (*models.Experiment, error) {
	if projectID == "" || componentID == "" || datapipeExperimentID == "" {
		return nil, fmt.Errorf("%w: osf_project_id, osf_data_component_id and datapipe_experiment_id are required", ErrValidation)
	}

	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(exp).Updates(map[string]interface{}{
		"datapipe_project_id":    projectID,
		"datapipe_component_id":  componentID,
		"datapipe_experiment_id": datapipeExperimentID,
	}).Error
	if err != nil {
		return nil, err
	}

	exp.DatapipeProjectID = projectID
	exp.DatapipeComponentID = componentID
	exp.DatapipeExperimentID = datapipeExperimentID
	return exp, nil
}

// ExportRow is one flattened trial record for JSON/CSV export
type ExportRow map[string]interface{}

// Export flattens every participant's trial array into per-trial records.
// Non-array payloads export as a single record.
func (s *DataService) Export(userID, experimentID string) (*models.Experiment, []ExportRow, error) {
	exp, err := s.ownedExperiment(userID, experimentID)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.ExperimentData
	err = s.DB.Where("experiment_id = ?", exp.ID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	out := []ExportRow{}
	for _, row := range rows {
		base := ExportRow{
			"participant_id": row.ID,
			"session_id":     row.SessionID,
			"prolific_pid":   exportPID(row.ProlificPID),
			"created_at":     row.CreatedAt,
		}

		var trials []map[string]interface{}
		if err := json.Unmarshal([]byte(row.Data.JSON), &trials); err != nil {
			// Payload is not a trial array; export the envelope as-is.
			record := cloneExportRow(base)
			record["data"] = string(row.Data.JSON)
			out = append(out, record)
			continue
		}

		for _, trial := range trials {
			record := cloneExportRow(base)
			for k, v := range trial {
				record[k] = v
			}
			out = append(out, record)
		}
	}

	return exp, out, nil
}

// ExportFields derives a stable CSV header: the fixed participant columns
// first, then every trial key seen across the export, sorted.
func ExportFields(rows []ExportRow) []string {
	fixed := []string{"participant_id", "session_id", "prolific_pid", "created_at"}
	fixedSet := map[string]bool{}
	for _, f := range fixed {
		fixedSet[f] = true
	}

	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !fixedSet[k] {
				seen[k] = true
			}
		}
	}

	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)

	return append(fixed, extra...)
}

func exportPID(pid string) string {
	if pid == "" {
		return "NA"
	}
	return pid
}

func cloneExportRow(base ExportRow) ExportRow {
	out := make(ExportRow, len(base))
	for k, v := range base {
		out[k] = v
	}
	return out
}
