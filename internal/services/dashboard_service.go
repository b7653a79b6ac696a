package services

import (
	"time"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/storage"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Overview aggregates account-wide statistics for the dashboard
type Overview struct {
	Experiments struct {
		Total int64 `json:"total"`
		Live  int64 `json:"live"`
	} `json:"experiments"`
	Participants struct {
		Total    int64 `json:"total"`
		ThisWeek int64 `json:"this_week"`
	} `json:"participants"`
	DataSync struct {
		Synced  int64 `json:"synced"`
		Pending int64 `json:"pending"`
	} `json:"data_sync"`
	RecentActivity []RecentExperiment `json:"recent_activity"`
}

// RecentExperiment is a dashboard activity entry
type RecentExperiment struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Live             bool      `json:"live"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int64     `json:"participant_count"`
}

// ExperimentStorage reports disk usage for one experiment
type ExperimentStorage struct {
	ExperimentID    string `json:"experiment_id"`
	ExperimentTitle string `json:"experiment_title"`
	TotalSizeBytes  int64  `json:"total_size_bytes"`
	TotalFileCount  int    `json:"total_file_count"`
	DataSizeBytes   int64  `json:"data_size_bytes"`
	DataFileCount   int    `json:"data_file_count"`
}

// StorageReport aggregates file and database storage for the caller
type StorageReport struct {
	FileStorage struct {
		Bytes     int64 `json:"bytes"`
		FileCount int   `json:"file_count"`
	} `json:"file_storage"`
	DatabaseStorage struct {
		DataPoints int64 `json:"data_points"`
	} `json:"database_storage"`
	Experiments []ExperimentStorage `json:"experiments"`
}

// DashboardService computes researcher-facing aggregate statistics
type DashboardService struct {
	DB     *gorm.DB
	Assets *storage.Store
}

// dashVia tags dashboard aggregate queries so they are identifiable in
// slow-query logs.
func (s *DashboardService) dashVia(label string) *gorm.DB {
	return s.DB.Clauses(hints.CommentBefore("select", "dashboard:"+label))
}

// Overview computes account-wide counters and recent activity
func (s *DashboardService) Overview(userID string) (Overview, error) {
	var out Overview

	if err := s.dashVia("experiments").Model(&models.Experiment{}).
		Where("user_id = ?", userID).
		Count(&out.Experiments.Total).Error; err != nil {
		return out, err
	}
	if err := s.dashVia("experiments").Model(&models.Experiment{}).
		Where("user_id = ? AND live = ?", userID, true).
		Count(&out.Experiments.Live).Error; err != nil {
		return out, err
	}

	participants := s.dashVia("participants").Model(&models.ExperimentData{}).
		Joins("JOIN experiments ON experiments.id = experiment_data.experiment_id").
		Where("experiments.user_id = ?", userID)
	if err := participants.Count(&out.Participants.Total).Error; err != nil {
		return out, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := s.dashVia("participants").Model(&models.ExperimentData{}).
		Joins("JOIN experiments ON experiments.id = experiment_data.experiment_id").
		Where("experiments.user_id = ? AND experiment_data.created_at >= ?", userID, weekAgo).
		Count(&out.Participants.ThisWeek).Error; err != nil {
		return out, err
	}

	if err := s.dashVia("sync").Model(&models.ExperimentData{}).
		Joins("JOIN experiments ON experiments.id = experiment_data.experiment_id").
		Where("experiments.user_id = ? AND experiment_data.synced_to_osf = ?", userID, true).
		Count(&out.DataSync.Synced).Error; err != nil {
		return out, err
	}
	if err := s.dashVia("sync").Model(&models.ExperimentData{}).
		Joins("JOIN experiments ON experiments.id = experiment_data.experiment_id").
		Where("experiments.user_id = ? AND experiment_data.synced_to_osf = ?", userID, false).
		Count(&out.DataSync.Pending).Error; err != nil {
		return out, err
	}

	var recent []models.Experiment
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(5).
		Find(&recent).Error; err != nil {
		return out, err
	}

	out.RecentActivity = make([]RecentExperiment, 0, len(recent))
	for _, exp := range recent {
		var count int64
		if err := s.DB.Model(&models.ExperimentData{}).
			Where("experiment_id = ?", exp.ID).
			Count(&count).Error; err != nil {
			return out, err
		}
		out.RecentActivity = append(out.RecentActivity, RecentExperiment{
			ID:               exp.ID,
			Title:            exp.Title,
			Live:             exp.Live,
			CreatedAt:        exp.CreatedAt,
			ParticipantCount: count,
		})
	}

	return out, nil
}

// Storage walks the caller's experiment asset directories and counts stored
// data points.
func (s *DashboardService) Storage(userID string) (StorageReport, error) {
	var out StorageReport
	out.Experiments = []ExperimentStorage{}

	var exps []models.Experiment
	err := s.dashVia("storage").
		Where("user_id = ? AND files_path <> ''", userID).
		Find(&exps).Error
	if err != nil {
		return out, err
	}

	for _, exp := range exps {
		total, totalFiles, err := storage.DirUsage(s.Assets.ExperimentDir(exp.ID))
		if err != nil {
			return out, err
		}
		dataSize, dataFiles, err := storage.DirUsage(s.Assets.DataDir(exp.ID))
		if err != nil {
			return out, err
		}

		out.Experiments = append(out.Experiments, ExperimentStorage{
			ExperimentID:    exp.ID,
			ExperimentTitle: exp.Title,
			TotalSizeBytes:  total,
			TotalFileCount:  totalFiles,
			DataSizeBytes:   dataSize,
			DataFileCount:   dataFiles,
		})
		out.FileStorage.Bytes += total
		out.FileStorage.FileCount += totalFiles
	}

	err = s.dashVia("storage").Model(&models.ExperimentData{}).
		Joins("JOIN experiments ON experiments.id = experiment_data.experiment_id").
		Where("experiments.user_id = ?", userID).
		Count(&out.DatabaseStorage.DataPoints).Error
	return out, err
}
