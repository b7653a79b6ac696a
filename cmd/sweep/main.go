// main.go
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

// Command sweep runs the data retention sweep across every experiment with
// auto-delete enabled, regardless of owner. Intended for cron.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/studyhost/studyhost/internal/config"
	"github.com/studyhost/studyhost/internal/database"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	retention := &services.RetentionService{
		DB:     db,
		Assets: storage.NewStore(cfg.UploadDir),
	}

	summary, err := retention.SweepAll()
	if err != nil {
		log.Fatalf("Retention sweep failed: %v", err)
	}

	output, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal sweep summary: %v", err)
	}
	fmt.Println(string(output))

	log.Printf("Retention sweep complete: %d row(s) deleted across %d experiment(s)",
		summary.TotalDeleted, len(summary.Experiments))
	os.Exit(0)
}
