package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"account-service/internal/model"
)

const (
	uploadLimit       = 10
	uploadLimitWindow = time.Minute
)

type Router struct {
	ServiceName string
	Auth        *AuthHandler
	OAuth       *OAuthHandler
	Users       *UserHandler
	Storage     *StorageHandler
	Tokens      TokenValidator
	Roles       RoleAuthorizer
	// LimiterStorage backs the upload limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func (r *Router) Register(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": r.ServiceName})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/docs/openapi.yaml", OpenAPISpec)

	auth := AuthMiddleware(r.Tokens)
	adminOnly := RequireRoles(r.Roles, model.RoleAdmin)

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", r.Auth.Register)
	authRoutes.Post("/login", r.Auth.Login)
	authRoutes.Post("/refresh", r.Auth.Refresh)
	authRoutes.Post("/logout", r.Auth.Logout)
	authRoutes.Get("/test-public", r.Auth.TestPublic)
	authRoutes.Get("/test-protected", auth, adminOnly, r.Auth.TestProtected)
	if r.OAuth != nil {
		authRoutes.Get("/oauth/google", r.OAuth.Redirect)
		authRoutes.Get("/oauth/google/callback", r.OAuth.Callback)
	}

	userRoutes := v1.Group("/users", auth)
	userRoutes.Get("/", adminOnly, r.Users.ListUsers)
	userRoutes.Get("/me", r.Users.GetProfile)
	userRoutes.Put("/me/name", r.Users.UpdateName)
	userRoutes.Put("/me/email", r.Users.UpdateEmail)
	userRoutes.Put("/me/image", r.Users.UpdateImage)
	userRoutes.Post("/me/avatar", r.Users.UploadAvatar)
	userRoutes.Put("/me/password", r.Users.ChangePassword)
	userRoutes.Post("/me/password", r.Users.SetPassword)
	userRoutes.Get("/me/providers", r.Users.Providers)

	storageRoutes := v1.Group("/storage")
	storageRoutes.Get("/test", r.Storage.Test)
	storageRoutes.Post("/upload", limiter.New(limiter.Config{
		Max:        uploadLimit,
		Expiration: uploadLimitWindow,
		Storage:    r.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "upload:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errorJSON(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Upload limit reached, try again later")
		},
	}), auth, r.Storage.Upload)
	storageRoutes.Get("/files", auth, r.Storage.List)
	storageRoutes.Get("/file/*", auth, r.Storage.Get)
	storageRoutes.Delete("/file/*", auth, r.Storage.Delete)
	storageRoutes.Get("/url/*", auth, r.Storage.SignedURL)
	storageRoutes.Post("/replace", auth, r.Storage.Replace)
	storageRoutes.Get("/stats", auth, adminOnly, r.Storage.Stats)
}
