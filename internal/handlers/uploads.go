package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/utils"
)

// UploadHandler handles experiment asset uploads
type UploadHandler struct {
	Experiments *services.ExperimentService
	Assets      *storage.Store
}

// Upload handles POST /api/experiments/:id/upload
// @Summary Upload experiment assets
// @Description Upload one or more experiment files (multipart field "files")
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/upload [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "upload")
	}

	exp, err := h.Experiments.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "upload")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.ErrorResponse(c, "Invalid multipart form", fiber.StatusBadRequest, "upload")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return utils.ErrorResponse(c, "No files provided", fiber.StatusBadRequest, "upload")
	}

	existing, err := h.Assets.ListAssets(exp.ID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "upload")
	}
	if len(existing)+len(files) > storage.MaxFiles {
		return utils.ErrorResponse(c,
			fmt.Sprintf("Upload would exceed the %d file limit", storage.MaxFiles),
			fiber.StatusBadRequest, "upload")
	}

	saved := make([]storage.FileInfo, 0, len(files))
	for _, fh := range files {
		if fh.Size > storage.MaxFileSize {
			return utils.ErrorResponse(c,
				fmt.Sprintf("File '%s' exceeds the %d byte limit", fh.Filename, int64(storage.MaxFileSize)),
				fiber.StatusBadRequest, "upload")
		}
		if !storage.AllowedFile(fh.Filename) {
			return utils.ErrorResponse(c,
				fmt.Sprintf("File type of '%s' is not allowed", fh.Filename),
				fiber.StatusBadRequest, "upload")
		}

		src, err := fh.Open()
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "upload")
		}
		info, err := h.Assets.SaveAsset(exp.ID, fh.Filename, src)
		src.Close()
		if err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "upload")
		}
		saved = append(saved, info)
	}

	if exp.FilesPath == "" {
		if err := h.Experiments.SetFilesPath(exp); err != nil {
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "upload")
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Uploaded %d file(s)", len(saved)),
		"files":   saved,
	})
}

// ListFiles handles GET /api/experiments/:id/files
// @Summary List experiment assets
// @Description List uploaded files with name, size, and modification time
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/files [get]
func (h *UploadHandler) ListFiles(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "listFiles")
	}

	exp, err := h.Experiments.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "listFiles")
	}

	files, err := h.Assets.ListAssets(exp.ID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listFiles")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"experiment_id": exp.ID,
		"files":         files,
	})
}

// DeleteFile handles DELETE /api/experiments/:id/files/:filename
// @Summary Delete an experiment asset
// @Description Remove one uploaded file
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experiment ID"
// @Param filename path string true "File name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /experiments/{id}/files/{filename} [delete]
func (h *UploadHandler) DeleteFile(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "deleteFile")
	}

	exp, err := h.Experiments.Get(userID, c.Params("id"))
	if err != nil {
		return serviceError(c, err, "deleteFile")
	}

	filename := c.Params("filename")
	if err := h.Assets.DeleteAsset(exp.ID, filename); err != nil {
		return utils.NotFoundResponse(c, fmt.Sprintf("File '%s' not found", filename))
	}

	return utils.MessageResponse(c, "File deleted")
}
