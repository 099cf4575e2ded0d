package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"account-service/internal/api"
	"account-service/internal/cache"
	"account-service/internal/config"
	"account-service/internal/events"
	"account-service/internal/jwt"
	"account-service/internal/oauth"
	"account-service/internal/repository"
	objstore "account-service/internal/s3"
	"account-service/internal/service"
	"account-service/internal/storage"
	"account-service/internal/tracing"
	_ "account-service/migrations"
)

const (
	serviceName = "account-service"
	// documents may be 20MB; leave room for multipart framing
	bodyLimit = 25 * 1024 * 1024
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	api.SetupGlobalHandler(serviceName, cfg.LogLevel)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg.DB.URL())
		return
	}

	shutdownTracer, err := tracing.InitTracerProvider(serviceName, cfg.OtelEndpoint)
	if err != nil {
		fatal("Failed to initialize OpenTelemetry", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("Error shutting down tracer provider", "error", err)
		}
	}()

	ctx := context.Background()

	db := connectDB(cfg.DB.URL())
	defer db.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	slog.Info("Successfully connected to Redis")

	natsConn, err := nats.Connect(cfg.NatsURL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		fatal("Failed to connect to NATS", err)
	}
	defer natsConn.Close()
	slog.Info("Successfully connected to NATS")

	store, err := objstore.NewSupabaseStore(ctx, cfg.Storage)
	if err != nil {
		fatal("Failed to configure object storage", err)
	}

	userRepo := repository.NewPostgresUserRepository(db)
	accountRepo := repository.NewPostgresAccountRepository(db)
	tokenRepo := repository.NewPostgresTokenRepository(db)
	storageEventRepo := repository.NewPostgresStorageEventRepository(db)

	eventSubscriber, err := events.NewStorageEventSubscriber(natsConn, storageEventRepo)
	if err != nil {
		fatal("Failed to start storage event subscriber", err)
	}
	defer eventSubscriber.Close()

	publisher := events.NewNatsPublisher(natsConn)
	tokens := jwt.NewManager(cfg.JWT)
	roles := service.NewRoleResolver(userRepo, cache.NewRoleCache(redisClient))

	authService := service.NewAuthService(userRepo, accountRepo, tokenRepo, tokens)
	storageService := service.NewStorageService(store, storage.DefaultPolicies(), publisher)
	userService := service.NewUserService(userRepo, accountRepo, tokenRepo, storageService, roles, publisher)

	limiterStorage := cache.NewLimiterStorage(redisClient)

	router := &api.Router{
		ServiceName:    serviceName,
		Auth:           api.NewAuthHandler(authService),
		Users:          api.NewUserHandler(userService),
		Storage:        api.NewStorageHandler(storageService),
		Tokens:         tokens,
		Roles:          roles,
		LimiterStorage: limiterStorage,
	}

	if cfg.OAuth.GoogleEnabled() {
		google, err := oauth.NewGoogleProvider(ctx, cfg.OAuth)
		if err != nil {
			fatal("Failed to configure Google OAuth", err)
		}
		router.OAuth = api.NewOAuthHandler(google, cache.NewStateStore(redisClient), authService)
	} else {
		slog.Warn("Google OAuth is not configured, OAuth routes are disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		BodyLimit:    bodyLimit,
		ErrorHandler: api.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CorsOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(compress.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.ThrottleLimit,
		Expiration: cfg.ThrottleTTL,
		Storage:    limiterStorage,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	app.Use(otelfiber.Middleware())
	app.Use(api.PrometheusMiddleware())
	app.Use(api.RequestLogger())

	router.Register(app)

	go func() {
		slog.Info("Listening", "service", serviceName, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			fatal("Server stopped", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down", "service", serviceName)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Error during server shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func connectDB(dbURL string) *sqlx.DB {
	db, err := sqlx.Connect("pgx", dbURL)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	slog.Info("Successfully connected to the database")
	return db
}

func handleMigrations(dbURL string) {
	fmt.Println("Running database migrations...")

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
