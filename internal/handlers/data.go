// data.go
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
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
)

// DataHandler gives researchers access to collected participant data
type DataHandler struct {
	Service   *services.DataService
	Retention *services.RetentionService
}

// dataRowView shapes a data row for API responses
func dataRowView(row *models.ExperimentData) fiber.Map {
	return fiber.Map{
		"id":            row.ID,
		"experiment_id": row.ExperimentID,
		"session_id":    row.SessionID,
		"prolific_pid":  row.ProlificPID,
		"data":          row.Data,
		"synced_to_osf": row.SyncedToOSF,
		"synced_at":     row.SyncedAt,
		"created_at":    row.CreatedAt,
	}
}

// List handles GET /api/experiments/:id/data
// @Summary List collected data
// @Description List participant data rows, newest first
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data [get]
func (h *DataHandler) List(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "listData")
	}

	exp, rows, err := h.Service.List(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "listData")
	}

	views := make([]fiber.Map, len(rows))
	for i := range rows {
		views[i] = dataRowView(&rows[i])
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"experiment_id": exp.ID,
		"count":         len(views),
		"data":          views,
	})
}

// Get handles GET /api/experiments/:id/data/:rowID
// @Summary Get one data row
// @Description Get a single participant data row
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param rowID path string true "Data row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/{rowID} [get]
func (h *DataHandler) Get(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "getData")
	}

	row, err := h.Service.Get(userID, c.Params("id"), c.Params("rowID"))
	if err != nil {
		return serviceError(c, err, "getData")
	}

	return c.Status(fiber.StatusOK).JSON(dataRowView(row))
}

// ExportJSON handles GET /api/experiments/:id/data/export/json
// @Summary Export data as JSON
// @Description Export flattened per-trial records as a JSON download
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {array} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/export/json [get]
func (h *DataHandler) ExportJSON(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "exportJSON")
	}

	exp, rows, err := h.Service.Export(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "exportJSON")
	}

	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.json"`, exportBasename(exp)))
	return c.Status(fiber.StatusOK).JSON(rows)
}

// ExportCSV handles GET /api/experiments/:id/data/export/csv
// @Summary Export data as CSV
// @Description Export flattened per-trial records as a CSV download
// @Tags Data
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {string} string
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/export/csv [get]
func (h *DataHandler) ExportCSV(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "exportCSV")
	}

	exp, rows, err := h.Service.Export(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "exportCSV")
	}

	fields := services.ExportFields(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "exportCSV")
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = csvCell(row[field])
		}
		if err := w.Write(record); err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "exportCSV")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "exportCSV")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.csv"`, exportBasename(exp)))
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

// csvCell renders one exported value; absent fields become empty cells
func csvCell(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; keep integers unsuffixed
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func exportBasename(exp *models.Experiment) string {
	return "experiment_data_" + exp.ID
}

// DeleteRow handles DELETE /api/experiments/:id/data/:rowID
// @Summary Delete one data row
// @Description Delete a single participant data row and its session mirrors
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param rowID path string true "Data row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/{rowID} [delete]
func (h *DataHandler) DeleteRow(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "deleteDataRow")
	}

	if err := h.Service.DeleteRow(userID, c.Params("id"), c.Params("rowID")); err != nil {
		return serviceError(c, err, "deleteDataRow")
	}

	return utils.MessageResponse(c, "Data row deleted")
}

// DeleteAll handles DELETE /api/experiments/:id/data/all
// @Summary Delete all data
// @Description Delete every participant data row of an experiment
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/all [delete]
func (h *DataHandler) DeleteAll(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "deleteAllData")
	}

	count, err := h.Service.DeleteAll(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "deleteAllData")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Data deleted",
		"deleted_count": count,
	})
}

// DeleteSynced handles DELETE /api/experiments/:id/data/synced
// @Summary Delete synced data
// @Description Delete participant data rows already archived upstream
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/data/synced [delete]
func (h *DataHandler) DeleteSynced(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "deleteSyncedData")
	}

	count, err := h.Service.DeleteSynced(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "deleteSyncedData")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Synced data deleted",
		"deleted_count": count,
	})
}

// AutoDelete handles POST /api/data/auto-delete
// @Summary Run the retention sweep
// @Description Delete aged synced data across all of the caller's retention-enabled experiments
// @Tags Data
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SweepSummary
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /data/auto-delete [post]
func (h *DataHandler) AutoDelete(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "autoDelete")
	}

	summary, err := h.Retention.SweepUser(userID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "autoDelete")
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
