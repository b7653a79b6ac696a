// experiment_service.go
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
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const completionCodeLength = 8

// ExperimentService owns the experiment publication lifecycle
type ExperimentService struct {
	DB     *gorm.DB
	Assets *storage.Store
}

// Create creates a draft experiment owned by the caller
func (s *ExperimentService) Create(userID, title, description string) (*models.Experiment, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	exp := models.Experiment{
		UserID:      userID,
		Title:       title,
		Description: description,
	}
	if err := s.DB.Create(&exp).Error; err != nil {
		return nil, err
	}
	return &exp, nil
}

// List returns the caller's experiments, newest first
func (s *ExperimentService) List(userID string) ([]models.Experiment, error) {
	var exps []models.Experiment
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&exps).Error
	return exps, err
}

// Get fetches an experiment owned by the caller
func (s *ExperimentService) Get(userID, experimentID string) (*models.Experiment, error) {
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

// Delete removes an experiment, its collected data rows and its asset
// directory. DB rows go first; the directory removal is best effort.
func (s *ExperimentService) Delete(userID, experimentID string) error {
	exp, err := s.Get(userID, experimentID)
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("experiment_id = ?", exp.ID).
			Delete(&models.ExperimentData{}).Error; err != nil {
			return err
		}
		return tx.Delete(exp).Error
	})
	if err != nil {
		return err
	}

	if err := s.Assets.RemoveExperiment(exp.ID); err != nil {
		log.Printf("Failed to remove asset directory for experiment %s: %v", exp.ID, err)
	}
	return nil
}

// ToggleLive flips the publication state. The completion code is generated
// on the first transition to live and reused on every later toggle.
func (s *ExperimentService) ToggleLive(userID, experimentID string) (*models.Experiment, error) {
	var exp models.Experiment

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; its transactions serialize writers anyway.
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ? AND user_id = ?", experimentID, userID).
			First(&exp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{"live": !exp.Live}
		if !exp.Live && exp.CompletionCode == "" {
			code, err := GenerateCompletionCode()
			if err != nil {
				return err
			}
			updates["completion_code"] = code
			exp.CompletionCode = code
		}
		exp.Live = !exp.Live

		return tx.Model(&exp).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return &exp, nil
}

// SetAutoDelete configures the retention policy. 0 disables auto-delete.
func (s *ExperimentService) SetAutoDelete(userID, experimentID string, days int) (*models.Experiment, error) {
	if days < 0 || days > 365 {
		return nil, fmt.Errorf("%w: auto_delete_days must be between 0 and 365 (0 disables auto-delete)", ErrValidation)
	}

	exp, err := s.Get(userID, experimentID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(exp).Update("auto_delete_days", days).Error; err != nil {
		return nil, err
	}
	exp.AutoDeleteDays = days
	return exp, nil
}

// SetFilesPath records the asset directory on the experiment after the
// first upload.
func (s *ExperimentService) SetFilesPath(exp *models.Experiment) error {
	rel := s.Assets.RelativePath(exp.ID)
	if exp.FilesPath == rel {
		return nil
	}
	if err := s.DB.Model(exp).Update("files_path", rel).Error; err != nil {
		return err
	}
	exp.FilesPath = rel
	return nil
}

// GenerateCompletionCode returns a random opaque code shown to participants
// at experiment end. Collisions are acceptable at this code space and
// volume.
func GenerateCompletionCode() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	buf := make([]byte, completionCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate completion code: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
