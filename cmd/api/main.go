package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/background"
	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/handlers"
	middlewareCustom "github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	"github.com/BradenHooton/warden/internal/routes"
	"github.com/BradenHooton/warden/internal/session"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
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
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env), slog.String("session_store", cfg.Session.Store))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	rememberRepo := repositories.NewRememberTokenRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	roleRepo := repositories.NewRoleRepository(db)

	// Session storage
	healthChecks := map[string]handlers.HealthCheck{"database": db.HealthCheck}
	cleanupTasks := []background.CleanupTask{{Name: "remember_tokens", Purge: rememberRepo.DeleteExpired}}

	var sessionStore session.Store
	switch cfg.Session.Store {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := session.NewRedisClient(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rc.Close()
		sessionStore = session.NewRedisStore(rc, "")
		healthChecks["sessions"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	default:
		memory := session.NewMemoryStore()
		sessionStore = memory
		cleanupTasks = append(cleanupTasks, background.CleanupTask{Name: "sessions", Purge: memory.PurgeExpired})
	}

	sessionManager := session.NewManager(sessionStore, cfg.Session.TTL, session.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: cfg.Session.SameSite,
	}, logger)

	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval, cleanupTasks...)

	// Password hashing
	argon := pkgauth.DefaultArgon2Params
	argon.Memory = uint32(cfg.Auth.Argon2Memory)
	argon.Iterations = uint32(cfg.Auth.Argon2Iterations)
	argon.Parallelism = uint8(cfg.Auth.Argon2Parallelism)
	policy, err := pkgauth.NewPasswordPolicy(cfg.Auth.HashAlgorithm, cfg.Auth.BcryptCost, argon)
	if err != nil {
		logger.Error("invalid password hashing configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Authentication core
	verifier := auth.NewVerifier(accountRepo, policy, cfg.Auth.ValidFields, logger)
	loginSessions := auth.NewLoginSessionManager(accountRepo, rememberRepo, cfg.Auth.RememberLength, logger)
	authenticator := auth.NewAuthenticator(verifier, accountRepo, rememberRepo, loginAttemptRepo, loginSessions, timingDelay, auth.Config{
		Silent:              cfg.Auth.Silent,
		ResetPasswordURL:    cfg.Auth.ResetPasswordURL,
		ResendActivationURL: cfg.Auth.ResendActivationURL,
	}, logger)
	gate := auth.NewRoleGate(authenticator, roleRepo, auth.GateConfig{
		LoginURL: cfg.Auth.LoginURL,
		ErrorURL: cfg.Auth.ErrorURL,
	}, logger)

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}
	rememberCookie := auth.RememberCookieConfig{
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: cfg.Session.SameSite,
	}
	authMiddleware := auth.NewMiddleware(gate, rememberCookie, ipConfig, logger)
	tickets := auth.NewTicketManager(cfg.Auth.TicketSecret, cfg.Auth.TicketTTL)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authenticator, loginSessions, accountRepo, tickets, authMiddleware, rememberCookie, cfg.Auth.TicketTTL, logger)
	adminHandler := handlers.NewAdminHandler(loginAttemptRepo, logger)
	healthHandler := handlers.NewHealthHandler(healthChecks, logger)

	// Bootstrap first admin account if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(ctx, accountRepo, roleRepo, policy, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		Auth:     authHandler,
		Admin:    adminHandler,
		Health:   healthHandler,
		Gate:     authMiddleware,
		Sessions: sessionManager,
		LoginLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.LoginRateLimit,
			IPConfig:          ipConfig,
		},
		ErrorURL: cfg.Auth.ErrorURL,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminAccount creates the first admin account if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminAccount(ctx context.Context, accounts *repositories.AccountRepository, roles *repositories.RoleRepository, policy *pkgauth.PasswordPolicy, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	// Check if admin already exists
	existing, err := accounts.FindByField(ctx, "email", adminEmail)
	if err == nil {
		logger.Info("admin account already exists")
		return roles.AddToRole(ctx, "admin", existing.ID)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := policy.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin, err := accounts.Create(ctx, &models.Account{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Activated:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	if err := roles.AddToRole(ctx, "admin", admin.ID); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}

	logger.Info("admin account created successfully")
	return nil
}
