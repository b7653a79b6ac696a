package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
)

// DatapipeHandler handles archival configuration and sync
type DatapipeHandler struct {
	Experiments *services.ExperimentService
	Data        *services.DataService
	Sync        *services.SyncService
}

type datapipeConfigRequest struct {
	OSFProjectID         string `json:"osf_project_id"`
	OSFDataComponentID   string `json:"osf_data_component_id"`
	DatapipeExperimentID string `json:"datapipe_experiment_id"`
}

// Configure handles POST /api/experiments/:id/datapipe/config
// @Summary Configure DataPipe archival
// @Description Store the OSF project, data component, and DataPipe experiment ids
// @Tags Datapipe
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param body body datapipeConfigRequest true "DataPipe configuration"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/datapipe/config [post]
func (h *DatapipeHandler) Configure(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "datapipeConfig")
	}

	var req datapipeConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "datapipeConfig")
	}

	exp, err := h.Data.ConfigureDatapipe(userID, c.Params("id"),
		req.OSFProjectID, req.OSFDataComponentID, req.DatapipeExperimentID)
	if err != nil {
		return serviceError(c, err, "datapipeConfig")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":                "DataPipe configured",
		"experiment_id":          exp.ID,
		"datapipe_experiment_id": exp.DatapipeExperimentID,
		"datapipe_project_id":    exp.DatapipeProjectID,
		"datapipe_component_id":  exp.DatapipeComponentID,
	})
}

// SyncData handles POST /api/experiments/:id/datapipe/sync
// @Summary Sync unsynced data to DataPipe
// @Description Push every unsynced participant data row to the archival service
// @Tags Datapipe
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} services.SyncResult
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/datapipe/sync [post]
func (h *DatapipeHandler) SyncData(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "datapipeSync")
	}

	exp, err := h.Experiments.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "datapipeSync")
	}

	result, err := h.Sync.SyncExperiment(c.Context(), exp)
	if err != nil {
		return serviceError(c, err, "datapipeSync")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// Status handles GET /api/experiments/:id/datapipe/status
// @Summary Get sync status
// @Description Report synced and unsynced counts with the last sync time
// @Tags Datapipe
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} services.SyncStatus
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/datapipe/status [get]
func (h *DatapipeHandler) Status(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "datapipeStatus")
	}

	exp, err := h.Experiments.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "datapipeStatus")
	}

	status, err := h.Sync.Status(exp)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "datapipeStatus")
	}

	return c.Status(fiber.StatusOK).JSON(status)
}
