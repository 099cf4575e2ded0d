package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"account-service/internal/service"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
	}
}

type UpdateNameRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UpdateImageRequest struct {
	Image string `json:"image" validate:"required,url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.userService.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	user, err := h.userService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) UpdateName(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	var req UpdateNameRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.userService.UpdateName(c.UserContext(), userID, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) UpdateEmail(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	var req UpdateEmailRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.userService.UpdateEmail(c.UserContext(), userID, req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) UpdateImage(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	var req UpdateImageRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.userService.UpdateImage(c.UserContext(), userID, req.Image)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	file, closeFile, ok, err := formFile(c)
	if !ok {
		return err
	}
	defer closeFile()

	user, err := h.userService.UploadAvatar(c.UserContext(), userID, file)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	var req ChangePasswordRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	if err := h.userService.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

func (h *UserHandler) SetPassword(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	var req SetPasswordRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	if err := h.userService.SetPassword(c.UserContext(), userID, req.NewPassword, req.ConfirmPassword); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Password set successfully"})
}

func (h *UserHandler) Providers(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	}

	info, err := h.userService.Providers(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}
