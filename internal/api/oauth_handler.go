package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/cache"
	"account-service/internal/oauth"
	"account-service/internal/service"
)

type StateStore interface {
	Issue(ctx context.Context, provider string) (string, error)
	Consume(ctx context.Context, state, provider string) error
}

type OAuthHandler struct {
	provider    oauth.Provider
	states      StateStore
	authService service.AuthService
}

func NewOAuthHandler(provider oauth.Provider, states StateStore, authService service.AuthService) *OAuthHandler {
	return &OAuthHandler{provider: provider, states: states, authService: authService}
}

const stateCookie = "oauth_state"

func (h *OAuthHandler) Redirect(c *fiber.Ctx) error {
	state, err := h.states.Issue(c.UserContext(), h.provider.Name())
	if err != nil {
		return respondError(c, err)
	}

	// binds the state to this browser
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/v1/auth/oauth",
		MaxAge:   int(cache.StateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.provider.AuthCodeURL(state), fiber.StatusFound)
}

func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	if msg := c.Query("error"); msg != "" {
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "OAuth sign-in was cancelled: "+msg)
	}

	state := c.Query("state")
	cookie := c.Cookies(stateCookie)
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Path:     "/v1/auth/oauth",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if state == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(state)) != 1 {
		return errorJSON(c, fiber.StatusBadRequest, codeValidation, "Invalid or expired OAuth state")
	}

	ctx := c.UserContext()
	if err := h.states.Consume(ctx, state, h.provider.Name()); err != nil {
		if errors.Is(err, cache.ErrStateNotFound) {
			return errorJSON(c, fiber.StatusBadRequest, codeValidation, "Invalid or expired OAuth state")
		}
		return respondError(c, err)
	}

	code := c.Query("code")
	if code == "" {
		return errorJSON(c, fiber.StatusBadRequest, codeValidation, "Missing authorization code")
	}

	identity, err := h.provider.Exchange(ctx, code)
	if err != nil {
		slog.WarnContext(ctx, "OAuth exchange failed", "provider", h.provider.Name(), "error", err)
		return errorJSON(c, fiber.StatusUnauthorized, codeUnauthorized, "OAuth sign-in failed")
	}

	tokens, err := h.authService.LoginWithOAuth(ctx, h.provider.Name(), identity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tokens)
}
