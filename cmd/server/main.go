package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arturoeanton/parley/internal/adapter/auth"
	"github.com/arturoeanton/parley/internal/adapter/store"
	"github.com/arturoeanton/parley/internal/handler"
	"github.com/arturoeanton/parley/internal/metrics"
	"github.com/arturoeanton/parley/internal/middleware"
	"github.com/arturoeanton/parley/internal/service"
	"github.com/arturoeanton/parley/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting "+cfg.AppName,
		"port", cfg.Port,
		"database", cfg.DSN(),
		"frontend", cfg.FrontendURL,
		"jwt_expiration", cfg.JWTExpiration,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if cfg.DBAutoMigrate {
		if err := pgStore.Migrate(context.Background()); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	googleAuth := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		UserInfoURL:  cfg.GoogleUserInfoURL,
		Timeout:      cfg.ProviderTimeout,
	})

	// ── Services ─────────────────────────────────────────────────────────
	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	secret := []byte(cfg.JWTSecret)

	authService := service.NewAuthService(
		googleAuth,
		service.NewStateGuard(),
		service.NewIdentityResolver(pgStore, appMetrics),
		service.NewCredentialIssuer(secret, cfg.JWTIssuer, cfg.JWTExpiration),
		appMetrics,
	)
	verifier := middleware.CountingVerifier(service.NewCredentialVerifier(secret, cfg.JWTIssuer), appMetrics)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// ── Login Routes ─────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authService, pgStore, appMetrics, cfg.FrontendURL, cfg.StateCookieSecure)
	authHandler.Register(app)

	// ── API Routes ───────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	helloHandler := handler.NewHelloHandler(verifier, cfg.AppName)
	helloHandler.Register(api)

	secured := api.Group("", middleware.Authenticate(verifier))
	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(secured)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ── Start ────────────────────────────────────────────────────────────
	go func() {
		slog.Info("fiber listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
