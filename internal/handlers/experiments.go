// experiments.go
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

package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/types"
	"github.com/studyhost/studyhost/internal/utils"
)

// ExperimentHandler handles the experiment publication lifecycle
type ExperimentHandler struct {
	Service   *services.ExperimentService
	PublicURL string
}

// publicRunURL is the participant-facing entry point of a live experiment
func (h *ExperimentHandler) publicRunURL(exp *models.Experiment) string {
	if !exp.Live {
		return ""
	}
	return fmt.Sprintf("%s/run/%s", h.PublicURL, exp.ID)
}

// experimentView shapes an experiment for API responses
func (h *ExperimentHandler) experimentView(exp *models.Experiment) fiber.Map {
	return fiber.Map{
		"id":                     exp.ID,
		"title":                  exp.Title,
		"description":            exp.Description,
		"live":                   exp.Live,
		"completion_code":        exp.CompletionCode,
		"public_url":             h.publicRunURL(exp),
		"auto_delete_days":       exp.AutoDeleteDays,
		"prolific_study_id":      exp.ProlificStudyID,
		"prolific_status":        exp.ProlificStatus,
		"datapipe_experiment_id": exp.DatapipeExperimentID,
		"datapipe_project_id":    exp.DatapipeProjectID,
		"datapipe_component_id":  exp.DatapipeComponentID,
		"created_at":             exp.CreatedAt,
	}
}

type createExperimentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create handles POST /api/experiments
// @Summary Create an experiment
// @Description Create a draft experiment owned by the caller
// @Tags Experiments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body createExperimentRequest true "Experiment fields"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /experiments [post]
func (h *ExperimentHandler) Create(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "createExperiment")
	}

	var req createExperimentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "createExperiment")
	}

	exp, err := h.Service.Create(userID, req.Title, req.Description)
	if err != nil {
		return serviceError(c, err, "createExperiment")
	}

	return c.Status(fiber.StatusCreated).JSON(h.experimentView(exp))
}

// List handles GET /api/experiments
// @Summary List experiments
// @Description List all experiments owned by the caller
// @Tags Experiments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /experiments [get]
func (h *ExperimentHandler) List(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "listExperiments")
	}

	exps, err := h.Service.List(userID)
	if err != nil {
		return serviceError(c, err, "listExperiments")
	}

	views := make([]fiber.Map, len(exps))
	for i := range exps {
		views[i] = h.experimentView(&exps[i])
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

// Get handles GET /api/experiments/:id
// @Summary Get an experiment
// @Description Get one experiment owned by the caller
// @Tags Experiments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id} [get]
func (h *ExperimentHandler) Get(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "getExperiment")
	}

	exp, err := h.Service.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "getExperiment")
	}

	return c.Status(fiber.StatusOK).JSON(h.experimentView(exp))
}

// Delete handles DELETE /api/experiments/:id
// @Summary Delete an experiment
// @Description Delete an experiment, its collected data, and its assets
// @Tags Experiments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id} [delete]
func (h *ExperimentHandler) Delete(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "deleteExperiment")
	}

	if err := h.Service.Delete(userID, c.Params("id")); err != nil {
		return serviceError(c, err, "deleteExperiment")
	}

	return utils.MessageResponse(c, "Experiment deleted")
}

// ToggleLive handles PATCH /api/experiments/:id/live
// @Summary Toggle the live state
// @Description Toggle publication; the completion code is generated on the first activation and kept afterwards
// @Tags Experiments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/live [patch]
func (h *ExperimentHandler) ToggleLive(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "toggleLive")
	}

	exp, err := h.Service.ToggleLive(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "toggleLive")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":              exp.ID,
		"live":            exp.Live,
		"completion_code": exp.CompletionCode,
		"public_url":      h.publicRunURL(exp),
	})
}

type autoDeleteRequest struct {
	AutoDeleteDays types.FlexInt `json:"auto_delete_days"`
}

// SetAutoDelete handles PUT /api/experiments/:id/auto-delete
// @Summary Configure data retention
// @Description Set the auto-delete threshold in days; 0 disables retention
// @Tags Experiments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param body body autoDeleteRequest true "Retention policy"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/auto-delete [put]
func (h *ExperimentHandler) SetAutoDelete(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "setAutoDelete")
	}

	var req autoDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "setAutoDelete")
	}

	exp, err := h.Service.SetAutoDelete(userID, c.Params("id"), req.AutoDeleteDays.Int())
	if err != nil {
		return serviceError(c, err, "setAutoDelete")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":               exp.ID,
		"auto_delete_days": exp.AutoDeleteDays,
	})
}
