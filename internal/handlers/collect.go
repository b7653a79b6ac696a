// collect.go
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
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/utils"
	"gorm.io/gorm"
)

// CollectHandler serves the public participant-facing endpoints. No
// authentication; the experiment id is the only capability required.
type CollectHandler struct {
	DB         *gorm.DB
	Assets     *storage.Store
	Collection *services.CollectionService
}

// liveExperiment loads an experiment and enforces the live gate
func (h *CollectHandler) liveExperiment(c *fiber.Ctx, experimentID string) (*models.Experiment, error) {
	var exp models.Experiment
	if err := h.DB.First(&exp, "id = ?", experimentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundResponse(c, "Experiment not found")
		}
		return nil, utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "run")
	}
	if !exp.Live {
		return nil, utils.ErrorResponse(c, "This experiment is not currently accepting participants",
			fiber.StatusForbidden, "run.notLive")
	}
	return &exp, nil
}

// Run handles GET /run/:id
// @Summary Participant entry point
// @Description Serve the experiment page for a live experiment
// @Tags Public
// @Produce html
// @Param id path string true "Experiment ID"
// @Success 200 {string} string
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /run/{id} [get]
func (h *CollectHandler) Run(c *fiber.Ctx) error {
	exp, err := h.liveExperiment(c, c.Params("id"))
	if err != nil {
		return err
	}

	// Serve the uploaded entry page when one exists; otherwise return
	// the experiment metadata so a hosted front end can render it.
	if f, err := h.Assets.OpenAsset(exp.ID, "index.html"); err == nil {
		defer f.Close()
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendStream(f)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":          exp.ID,
		"title":       exp.Title,
		"description": exp.Description,
		"live":        exp.Live,
	})
}

// Asset handles GET /run/:id/assets/:filename
// @Summary Serve an experiment asset
// @Description Serve an uploaded file of a live experiment
// @Tags Public
// @Param id path string true "Experiment ID"
// @Param filename path string true "File name"
// @Success 200 {string} string
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /run/{id}/assets/{filename} [get]
func (h *CollectHandler) Asset(c *fiber.Ctx) error {
	exp, err := h.liveExperiment(c, c.Params("id"))
	if err != nil {
		return err
	}

	filename := c.Params("filename")
	f, err := h.Assets.OpenAsset(exp.ID, filename)
	if err != nil {
		return utils.NotFoundResponse(c, "File not found")
	}
	defer f.Close()

	c.Type(strings.TrimPrefix(filepath.Ext(filename), "."))
	return c.SendStream(f)
}

// Submit handles POST /run/:id/data
// @Summary Submit participant data
// @Description Append one participant data row for a live experiment
// @Tags Public
// @Accept json
// @Produce json
// @Param id path string true "Experiment ID"
// @Param body body services.Submission true "Participant submission"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /run/{id}/data [post]
func (h *CollectHandler) Submit(c *fiber.Ctx) error {
	var sub services.Submission
	if err := c.BodyParser(&sub); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "submit")
	}

	row, err := h.Collection.Submit(c.Params("id"), sub)
	if err != nil {
		return serviceError(c, err, "submit")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"id":      row.ID,
		"message": "Data saved",
	})
}
