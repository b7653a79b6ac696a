package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
)

// ProlificHandler handles panel recruitment for experiments
type ProlificHandler struct {
	Service *services.ProlificService
}

// CreateStudy handles POST /api/experiments/:id/prolific/create
// @Summary Create a Prolific study
// @Description Create a draft study on Prolific pointing at the experiment's public URL
// @Tags Prolific
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param body body services.StudyParams true "Study parameters"
// @Success 201 {object} services.CreateStudyResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/prolific/create [post]
func (h *ProlificHandler) CreateStudy(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "prolificCreate")
	}

	var params services.StudyParams
	if err := c.BodyParser(&params); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "prolificCreate")
	}

	result, err := h.Service.CreateStudy(c.Context(), userID, c.Params("id"), params)
	if err != nil {
		return serviceError(c, err, "prolificCreate")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// PublishStudy handles POST /api/experiments/:id/prolific/publish
// @Summary Publish the Prolific study
// @Description Transition the linked study to published so recruitment starts
// @Tags Prolific
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/prolific/publish [post]
func (h *ProlificHandler) PublishStudy(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "prolificPublish")
	}

	exp, err := h.Service.PublishStudy(c.Context(), userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "prolificPublish")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":           "Study published",
		"experiment_id":     exp.ID,
		"prolific_study_id": exp.ProlificStudyID,
		"prolific_status":   exp.ProlificStatus,
	})
}

// StopStudy handles POST /api/experiments/:id/prolific/stop
// @Summary Stop the Prolific study
// @Description Transition the linked study to completed so recruitment stops
// @Tags Prolific
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/prolific/stop [post]
func (h *ProlificHandler) StopStudy(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "prolificStop")
	}

	exp, err := h.Service.StopStudy(c.Context(), userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "prolificStop")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":           "Study stopped",
		"experiment_id":     exp.ID,
		"prolific_study_id": exp.ProlificStudyID,
		"prolific_status":   exp.ProlificStatus,
	})
}

// StudyStatus handles GET /api/experiments/:id/prolific/status
// @Summary Get the Prolific study status
// @Description Proxy the upstream study details for the linked study
// @Tags Prolific
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/prolific/status [get]
func (h *ProlificHandler) StudyStatus(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "prolificStatus")
	}

	exp, study, err := h.Service.StudyStatus(c.Context(), userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "prolificStatus")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"experiment_id":   exp.ID,
		"prolific_status": exp.ProlificStatus,
		"study":           study,
	})
}
