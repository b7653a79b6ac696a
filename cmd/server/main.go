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

package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/studyhost/studyhost/internal/config"
	"github.com/studyhost/studyhost/internal/database"
	"github.com/studyhost/studyhost/internal/handlers"
	"github.com/studyhost/studyhost/internal/middleware"
	"github.com/studyhost/studyhost/internal/secrets"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/types"

	_ "github.com/studyhost/studyhost/docs/api" // Swagger docs
)

// @title StudyHost API
// @version 1.0.0
// @description Hosting platform for browser-based behavioral experiments
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/studyhost/studyhost

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Token cipher for stored Prolific credentials
	cipher, err := secrets.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	auth := middleware.NewAuth(cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	assets := storage.NewStore(cfg.UploadDir)

	// Services
	authSvc := &services.AuthService{DB: db, Auth: auth}
	expSvc := &services.ExperimentService{DB: db, Assets: assets}
	collectSvc := &services.CollectionService{DB: db, Assets: assets}
	dataSvc := &services.DataService{DB: db, Assets: assets}
	retentionSvc := &services.RetentionService{DB: db, Assets: assets}
	syncSvc := &services.SyncService{DB: db, Datapipe: services.NewDatapipeClient(cfg.DatapipeAPIURL)}
	prolificSvc := &services.ProlificService{
		DB:        db,
		Client:    services.NewProlificClient(cfg.ProlificAPIURL),
		Cipher:    cipher,
		PublicURL: cfg.PublicURL,
	}
	dashSvc := &services.DashboardService{DB: db, Assets: assets}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             storage.MaxFileSize + 1024*1024,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("studyhost")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Handlers
	authHandler := &handlers.AuthHandler{Service: authSvc}
	profileHandler := &handlers.ProfileHandler{DB: db, Prolific: prolificSvc}
	expHandler := &handlers.ExperimentHandler{Service: expSvc, PublicURL: cfg.PublicURL}
	uploadHandler := &handlers.UploadHandler{Experiments: expSvc, Assets: assets}
	collectHandler := &handlers.CollectHandler{DB: db, Assets: assets, Collection: collectSvc}
	dataHandler := &handlers.DataHandler{Service: dataSvc, Retention: retentionSvc}
	datapipeHandler := &handlers.DatapipeHandler{Experiments: expSvc, Data: dataSvc, Sync: syncSvc}
	prolificHandler := &handlers.ProlificHandler{Service: prolificSvc}
	dashHandler := &handlers.DashboardHandler{Service: dashSvc}
	healthHandler := &handlers.HealthHandler{Config: cfg, DB: db}

	// Health endpoint
	app.Get("/health", healthHandler.Health)

	// Public participant routes
	app.Get("/run/:id", collectHandler.Run)
	app.Get("/run/:id/assets/:filename", collectHandler.Asset)
	app.Post("/run/:id/data", collectHandler.Submit)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	// Auth routes (public)
	api.Post("/auth/signup", authHandler.Signup)
	api.Post("/auth/login", authHandler.Login)

	// Everything below requires a bearer token
	api.Use(auth.RequireUser())

	// Profile
	api.Get("/profile", profileHandler.Get)
	api.Put("/profile/link-prolific", profileHandler.LinkProlific)
	api.Delete("/profile/unlink-prolific", profileHandler.UnlinkProlific)

	// Experiments
	api.Post("/experiments", expHandler.Create)
	api.Get("/experiments", expHandler.List)
	api.Get("/experiments/:id", expHandler.Get)
	api.Delete("/experiments/:id", expHandler.Delete)
	api.Patch("/experiments/:id/live", expHandler.ToggleLive)
	api.Put("/experiments/:id/auto-delete", expHandler.SetAutoDelete)

	// Assets
	api.Post("/experiments/:id/upload", uploadHandler.Upload)
	api.Get("/experiments/:id/files", uploadHandler.ListFiles)
	api.Delete("/experiments/:id/files/:filename", uploadHandler.DeleteFile)

	// Collected data. The literal segments must register before :rowID.
	api.Get("/experiments/:id/data", dataHandler.List)
	api.Get("/experiments/:id/data/export/json", dataHandler.ExportJSON)
	api.Get("/experiments/:id/data/export/csv", dataHandler.ExportCSV)
	api.Delete("/experiments/:id/data/all", dataHandler.DeleteAll)
	api.Delete("/experiments/:id/data/synced", dataHandler.DeleteSynced)
	api.Get("/experiments/:id/data/:rowID", dataHandler.Get)
	api.Delete("/experiments/:id/data/:rowID", dataHandler.DeleteRow)

	// Retention sweep
	api.Post("/data/auto-delete", dataHandler.AutoDelete)

	// DataPipe archival
	api.Post("/experiments/:id/datapipe/config", datapipeHandler.Configure)
	api.Post("/experiments/:id/datapipe/sync", datapipeHandler.SyncData)
	api.Get("/experiments/:id/datapipe/status", datapipeHandler.Status)

	// Prolific recruitment
	api.Post("/experiments/:id/prolific/create", prolificHandler.CreateStudy)
	api.Post("/experiments/:id/prolific/publish", prolificHandler.PublishStudy)
	api.Post("/experiments/:id/prolific/stop", prolificHandler.StopStudy)
	api.Get("/experiments/:id/prolific/status", prolificHandler.StudyStatus)

	// Dashboard
	api.Get("/dashboard/overview", dashHandler.Overview)
	api.Get("/dashboard/storage", dashHandler.Storage)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var ce *types.CustomError
	if errors.As(err, &ce) {
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
