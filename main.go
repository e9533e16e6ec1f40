package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/evanhollis/annex/internal/auth"
	"github.com/evanhollis/annex/internal/config"
	"github.com/evanhollis/annex/internal/mail"
	"github.com/evanhollis/annex/internal/ratelimit"
	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/token"
)

// Embeds the migration files into the binary.

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// .env is a local-dev convenience; absence is fine.
	godotenv.Load()

	// Load config first so we can set log level.
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger before config is available.
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes always execute before
	// os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs. Shuts down when ctx is cancelled
// (signal handling is the caller's concern). If ready is non-nil, the
// server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; all ephemeral stores share one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	kv := store.NewRedisKV(rdb)

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	guard := ratelimit.NewGuard(store.NewRateLimiter(kv), cfg.RateLimitRules, cfg.RateLimitEnabled)

	// SMTP optional: empty host means codes are stored but never emailed.
	var sender mail.Sender = &mail.NopSender{}
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
	} else {
		slog.Warn("SMTP not configured, OTP email delivery disabled")
	}

	h := auth.AuthHandler{
		Users:      ps,
		Issuer:     issuer,
		Whitelist:  store.NewWhitelist(kv),
		Refresh:    store.NewRefreshStore(kv),
		Otp:        store.NewOtpStore(kv),
		Attempts:   store.NewLoginAttempts(kv, cfg.LoginMaxFailed, cfg.LoginAttemptWindow, cfg.LoginLockDuration),
		Guard:      guard,
		Sender:     sender,
		RefreshTTL: cfg.RefreshTokenTTL,
		OTPLength:  cfg.OTPLength,
		OTPTTL:     cfg.OTPTTL,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(&h, guard, cfg.RegisterAdminOnly)}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("annex listening", "addr", ln.Addr().String())
		// Send error only if the server stops for a reason other than
		// explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
func buildRouter(h *auth.AuthHandler, guard *ratelimit.Guard, registerAdminOnly bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	// Enforces rules that were given RATE_<NAME>_PATHS scoping; rules
	// without paths stay handler-invoked and are skipped here.
	r.Use(guard.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		if registerAdminOnly {
			r.With(h.RequireAuth, auth.RequireRole(store.RoleSuperAdmin)).Post("/register", h.Register)
		} else {
			r.Post("/register", h.Register)
		}
		r.Post("/login", h.Login)
		r.Post("/request-otp", h.RequestOtp)
		r.Post("/login-otp", h.LoginOtp)
		r.Post("/refresh", h.RefreshToken)

		// Authentication required routes.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/logout", h.Logout)
		})
	})

	return r
}
