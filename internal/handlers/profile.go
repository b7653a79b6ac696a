package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
	"gorm.io/gorm"
)

// ProfileHandler handles the researcher profile and Prolific account linkage
type ProfileHandler struct {
	DB       *gorm.DB
	Prolific *services.ProlificService
}

// maskToken hides all but the last four characters of a stored token
func maskToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return strings.Repeat("*", len(tok))
	}
	return strings.Repeat("*", 8) + tok[len(tok)-4:]
}

// Get handles GET /api/profile
// @Summary Get the researcher profile
// @Description Get the authenticated researcher's account details
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /profile [get]
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "profile")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundResponse(c, "User not found")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "profile")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":                    user.ID,
		"email":                 user.Email,
		"is_admin":              user.IsAdmin,
		"is_prolific_linked":    user.IsProlificLinked(),
		"prolific_api_token":    maskToken(user.ProlificAPIToken),
		"prolific_workspace_id": user.ProlificWorkspaceID,
		"created_at":            user.CreatedAt,
	})
}

type linkProlificRequest struct {
	ProlificAPIToken string `json:"prolific_api_token"`
}

// LinkProlific handles PUT /api/profile/link-prolific
// @Summary Link a Prolific account
// @Description Validate and store a Prolific API token for the researcher
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body linkProlificRequest true "Prolific API token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /profile/link-prolific [put]
func (h *ProfileHandler) LinkProlific(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "linkProlific")
	}

	var req linkProlificRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "linkProlific")
	}

	account, err := h.Prolific.LinkAccount(c.Context(), userID, req.ProlificAPIToken)
	if err != nil {
		return serviceError(c, err, "linkProlific")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":            "Prolific account linked",
		"prolific_user_id":   account.ID,
		"prolific_email":     account.Email,
		"is_prolific_linked": true,
	})
}

// UnlinkProlific handles DELETE /api/profile/unlink-prolific
// @Summary Unlink the Prolific account
// @Description Remove the stored Prolific API token
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /profile/unlink-prolific [delete]
func (h *ProfileHandler) UnlinkProlific(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized, "unlinkProlific")
	}

	if err := h.Prolific.UnlinkAccount(userID); err != nil {
		return serviceError(c, err, "unlinkProlific")
	}

	return utils.MessageResponse(c, "Prolific account unlinked")
}
