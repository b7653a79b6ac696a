package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/config"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
	"gorm.io/gorm"
)

// DashboardHandler handles researcher-facing aggregate statistics
type DashboardHandler struct {
	Service *services.DashboardService
}

// Overview handles GET /api/dashboard/overview
// @Summary Dashboard overview
// @Description Get experiment, participant, and sync counts with recent activity
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Overview
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "dashboardOverview")
	}

	overview, err := h.Service.Overview(userID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "dashboardOverview")
	}

	return c.Status(fiber.StatusOK).JSON(overview)
}

// Storage handles GET /api/dashboard/storage
// @Summary Storage report
// @Description Get per-experiment asset directory sizes and database payload counts
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.StorageReport
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /dashboard/storage [get]
func (h *DashboardHandler) Storage(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "dashboardStorage")
	}

	report, err := h.Service.Storage(userID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "dashboardStorage")
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// HealthHandler handles the liveness endpoint
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
}

// Health handles GET /health
// @Summary Health check
// @Description Report database and upstream service reachability
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Config, h.DB)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
