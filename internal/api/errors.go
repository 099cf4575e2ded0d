package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/service"
	"account-service/internal/storage"
)

const (
	codeValidation   = "VALIDATION_ERROR"
	codeUnauthorized = "UNAUTHENTICATED"
	codeForbidden    = "FORBIDDEN"
	codeConflict     = "CONFLICT"
	codeNotFound     = "NOT_FOUND"
	codeInternal     = "INTERNAL_ERROR"
)

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message, "code": code})
}

// respondError maps service and storage errors to a status and JSON body.
func respondError(c *fiber.Ctx, err error) error {
	if code, ok := storage.CodeOf(err); ok {
		status := storage.HTTPStatus(code)
		var se *storage.Error
		errors.As(err, &se)
		if status >= fiber.StatusInternalServerError {
			slog.ErrorContext(c.UserContext(), "Storage request failed", "path", c.Path(), "error", err)
		}
		return errorJSON(c, status, string(code), se.Message)
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrTokenInvalid):
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return errorJSON(c, fiber.StatusForbidden, codeForbidden, "Access denied")
	case errors.Is(err, service.ErrUserNotFound):
		return errorJSON(c, fiber.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrPasswordAlreadySet),
		errors.Is(err, service.ErrUnverifiedLink):
		return errorJSON(c, fiber.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, service.ErrNoCredentialAccount):
		return errorJSON(c, fiber.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrPasswordMismatch):
		return errorJSON(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}

	slog.ErrorContext(c.UserContext(), "Request failed", "path", c.Path(), "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, codeInternal, "Internal server error")
}

// ErrorHandler renders errors that escaped the handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := codeInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = codeNotFound
		case fe.Code == fiber.StatusTooManyRequests:
			code = "TOO_MANY_REQUESTS"
		case fe.Code == fiber.StatusRequestEntityTooLarge:
			code = string(storage.CodeFileTooLarge)
		case fe.Code < fiber.StatusInternalServerError:
			code = codeValidation
		}
		return errorJSON(c, fe.Code, code, fe.Message)
	}

	slog.ErrorContext(c.UserContext(), "Unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, codeInternal, "Internal server error")
}
