package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/dashgate/internal/auth"
	"github.com/BradenHooton/dashgate/internal/background"
	"github.com/BradenHooton/dashgate/internal/config"
	"github.com/BradenHooton/dashgate/internal/database"
	"github.com/BradenHooton/dashgate/internal/handlers"
	middlewareCustom "github.com/BradenHooton/dashgate/internal/middleware"
	"github.com/BradenHooton/dashgate/internal/repositories"
	"github.com/BradenHooton/dashgate/internal/routes"
	"github.com/BradenHooton/dashgate/internal/services"
	pkgauth "github.com/BradenHooton/dashgate/pkg/auth"
	pkghttp "github.com/BradenHooton/dashgate/pkg/http"
	pkglogger "github.com/BradenHooton/dashgate/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash of the given password for DASHBOARD_PASSWORD and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := pkgauth.HashSecret(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to hash password:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Driver))

	secret := pkgauth.NewSharedSecret(cfg.Gate.Password)
	if cfg.Gate.PasswordFromDefault {
		logger.Warn("DASHBOARD_PASSWORD not set, using the built-in default password")
	}
	if cfg.Server.Env == "production" && !secret.Hashed() {
		logger.Warn("DASHBOARD_PASSWORD is stored in plain text; consider a bcrypt hash (-hash-password)")
	}

	// Initialize state store
	repo, closeStore, err := openStateRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize state store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	ipConfig, invalidProxies := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	for _, entry := range invalidProxies {
		logger.Warn("ignoring invalid trusted proxy", slog.String("cidr", entry))
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	failureDelay := auth.NewFailureDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Gate.TimingDelayBaseMs,
		RandomDelayMs: cfg.Gate.TimingDelayRandomMs,
	})
	gateService := services.NewGateService(
		repo,
		secret,
		failureDelay,
		services.GateServiceConfig{
			IdleTimeout: cfg.Gate.IdleTimeout,
			SessionTTL:  cfg.Gate.SessionTTL,
		},
		logger,
		auditLogger,
	)
	defer gateService.Close()

	identities := auth.NewIdentityManager(cfg.Cookie.Secret, cfg.Cookie.ClientTTL, cfg.Gate.SessionTTL)
	csrfManager := auth.NewCSRFTokenManager(15 * time.Minute)
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Cookie.Domain,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSite,
	}

	// Initialize handlers
	gateHandler := handlers.NewGateHandler(gateService, csrfManager, ipConfig, logger)
	dashboard, err := handlers.NewDashboardHandler(cfg.Server.DashboardDir, logger)
	if err != nil {
		logger.Error("failed to open dashboard directory", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	submitLimit := middlewareCustom.DefaultSubmitRateLimit(ipConfig)
	if cfg.Gate.SubmitsPerMinute > 0 {
		submitLimit.RequestsPerMinute = cfg.Gate.SubmitsPerMinute
	}

	routes.RegisterRoutes(
		router,
		gateHandler,
		handlers.HealthCheck(gateService, cfg.Store.Driver),
		dashboard,
		auth.Identify(identities, cookieConfig, logger),
		submitLimit,
		logger,
	)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(gateService, csrfManager, logger, cfg.Gate.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		exitCode = 1
	}

	cleanupManager.Stop()
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		exitCode = 1
	}

	if exitCode != 0 {
		gateService.Close()
		closeStore()
		os.Exit(exitCode)
	}

	logger.Info("server stopped gracefully")
}

// openStateRepository builds the configured gate state store. The returned
// close function releases its resources.
func openStateRepository(cfg *config.Config, logger *slog.Logger) (repositories.StateRepository, func(), error) {
	if cfg.Store.Driver != config.StoreDriverPostgres {
		logger.Warn("using in-memory state store; lockouts reset when the process restarts")
		return repositories.NewMemoryStateRepository(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, &cfg.Database, logger); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return repositories.NewGateStateRepository(db), db.Close, nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
