package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/utils"
)

// AuthHandler handles researcher signup and login
type AuthHandler struct {
	Service *services.AuthService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup
// @Summary Create a researcher account
// @Description Register a new researcher with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body credentialsRequest true "Account credentials"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "signup")
	}

	user, err := h.Service.Signup(req.Email, req.Password)
	if err != nil {
		return serviceError(c, err, "signup")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Description Exchange researcher credentials for a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body credentialsRequest true "Account credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "login")
	}

	token, err := h.Service.Login(req.Email, req.Password)
	if err != nil {
		return serviceError(c, err, "login")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
	})
}
