package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"account-service/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// parseBody decodes and validates a JSON body, writing the 400 itself.
func parseBody(c *fiber.Ctx, validate *validator.Validate, out any) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON", "code": codeValidation})
	}

	if err := validate.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "code": codeValidation, "details": err.Error()})
	}
	return true, nil
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var request RegisterRequest
	if ok, err := parseBody(c, h.validate, &request); !ok {
		return err
	}

	user, err := h.authService.RegisterUser(c.UserContext(), request.Email, request.Password, request.Name)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request LoginRequest
	if ok, err := parseBody(c, h.validate, &request); !ok {
		return err
	}

	tokens, err := h.authService.LoginUser(c.UserContext(), request.Email, request.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	newAccessToken, err := h.authService.RefreshToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"access_token": newAccessToken})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req RefreshRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	if err := h.authService.LogoutUser(c.UserContext(), req.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Successfully logged out"})
}

func (h *AuthHandler) TestPublic(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "This is a public route"})
}

func (h *AuthHandler) TestProtected(c *fiber.Ctx) error {
	userID, _ := GetUserIDFromClaims(c)
	return c.JSON(fiber.Map{"message": "This is a protected route", "userId": userID})
}
