package services

import (
	"fmt"
	"log"

	"github.com/studyhost/studyhost/internal/config"
	"github.com/studyhost/studyhost/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Datapipe     string            `json:"datapipe"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck verifies database connectivity and archival service
// reachability. Archival unreachability degrades but does not fail the
// check; collection keeps working without it.
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			log.Printf("Health check failed - database ping: %v", err)
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	if err := utils.PingDatapipe(cfg.DatapipeAPIURL); err != nil {
		result.Datapipe = "unreachable"
		result.Details["datapipe_error"] = err.Error()
		log.Printf("Health check - datapipe unreachable: %v", err)
	} else {
		result.Datapipe = "ok"
		result.Details["datapipe_url"] = cfg.DatapipeAPIURL
	}

	if result.Status == "healthy" {
		log.Println("Health check passed")
	}

	return result
}
