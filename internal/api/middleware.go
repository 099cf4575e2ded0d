package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"account-service/internal/jwt"
	"account-service/internal/service"
)

const claimsKey = "userClaims"

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*jwt.Claims, error)
}

type RoleAuthorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, roles ...string) error
}

func AuthMiddleware(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "Missing authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "Invalid authorization header format")
		}

		claims, err := tokens.ValidateAccessToken(parts[1])
		if err != nil {
			if errors.Is(err, jwtv5.ErrTokenExpired) {
				return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "Token has expired")
			}
			return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "Invalid token")
		}

		userID, err := claims.UserID()
		if err != nil {
			return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "Invalid user ID format in token")
		}

		c.Locals(claimsKey, claims)
		c.SetUserContext(service.WithUserID(c.UserContext(), userID))

		return c.Next()
	}
}

// RequireRoles must run after AuthMiddleware. The role is resolved fresh
// rather than trusted from the token.
func RequireRoles(roles RoleAuthorizer, allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := GetUserIDFromClaims(c)
		if err != nil {
			return errorJSON(c, fiber.StatusForbidden, codeForbidden, "Access denied")
		}

		if err := roles.Authorize(c.UserContext(), userID, allowed...); err != nil {
			if errors.Is(err, service.ErrForbidden) {
				slog.WarnContext(c.UserContext(), "Role check failed", "user_id", userID, "path", c.Path())
				return errorJSON(c, fiber.StatusForbidden, codeForbidden, "Access denied")
			}
			return respondError(c, err)
		}

		return c.Next()
	}
}

func GetUserIDFromClaims(c *fiber.Ctx) (uuid.UUID, error) {
	claims, ok := c.Locals(claimsKey).(*jwt.Claims)
	if !ok {
		return uuid.Nil, errors.New("claims not found in context")
	}

	userID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid userID format in claims: %w", err)
	}

	return userID, nil
}

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()
		statusCode := c.Response().StatusCode()

		if err != nil {
			var e *fiber.Error

			if errors.As(err, &e) {
				statusCode = e.Code
			} else {
				statusCode = fiber.StatusInternalServerError
			}
		}

		method := c.Method()
		// route pattern keeps label cardinality bounded for wildcard paths
		path := c.Route().Path
		statusStr := fmt.Sprintf("%d", statusCode)

		httpRequestTotal.WithLabelValues(method, path, statusStr).Inc()
		httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		level := slog.LevelInfo
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= fiber.StatusBadRequest {
			level = slog.LevelWarn
		}

		slog.Log(c.UserContext(), level, "HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
			"user_agent", c.Get(fiber.HeaderUserAgent),
		)
		return err
	}
}
