// Package app is the composition root: it builds the account core from
// configuration and exposes the services to the transport collaborator.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ostromart/accounts/internal/account/service"
	"github.com/ostromart/accounts/internal/account/store"
	"github.com/ostromart/accounts/internal/account/store/drivers/sqlite"
	"github.com/ostromart/accounts/internal/account/token"
	"github.com/ostromart/accounts/pkg/clockx"
	"github.com/ostromart/accounts/pkg/cryptox"
	"github.com/ostromart/accounts/pkg/jwtx"
	"github.com/ostromart/accounts/pkg/limitx"
	"github.com/ostromart/accounts/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the account core together. The HTTP (or gRPC) transport
// lives in a separate collaborator that consumes the exposed services.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	auth         *service.AuthService
	verification *service.VerificationService
	mfa          *service.MFAService
	housekeeping *service.HousekeepingService
}

// New creates an Application with all dependencies initialized and
// migrations applied.
func New(cfg Config) (*Application, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("app: ACCOUNTS_JWT_SECRET is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	app.db = db

	clock := clockx.System()

	codec, err := jwtx.NewCodec([]byte(cfg.JWTSecret), clock)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	hasher := cryptox.NewHasher()
	access := token.NewAccessIssuer(codec, cfg.AccessTokenTTL)
	purpose := token.NewPurposeIssuer(codec)
	refresh := token.NewRefreshStore(db, clock, cfg.RefreshTokenTTL)
	notifier := &service.SlogNotifier{Logger: app.logger}

	app.auth = &service.AuthService{
		Store:           db,
		Hasher:          hasher,
		Access:          access,
		Purpose:         purpose,
		RefreshStore:    refresh,
		Notifier:        notifier,
		LoginLimiter:    limitx.NewKeyed(limitx.LoginLimit),
		MFAChallengeTTL: cfg.MFAChallengeTTL,
	}

	app.verification = &service.VerificationService{
		Store:            db,
		Hasher:           hasher,
		Purpose:          purpose,
		Refresh:          refresh,
		Notifier:         notifier,
		BaseURL:          cfg.BaseURL,
		VerifyEmailTTL:   cfg.VerifyEmailTTL,
		PasswordResetTTL: cfg.PasswordResetTTL,
	}

	app.mfa = &service.MFAService{
		Store:       db,
		Hasher:      hasher,
		Purpose:     purpose,
		Access:      access,
		Refresh:     refresh,
		Issuer:      cfg.Issuer,
		CodeLimiter: limitx.NewKeyed(limitx.LoginLimit),
	}

	app.housekeeping = service.NewHousekeepingService(db, app.logger, clock, cfg.HousekeepingInterval)

	return app, nil
}

// Auth exposes the authentication service to the transport collaborator.
func (app *Application) Auth() *service.AuthService { return app.auth }

// Verification exposes the email-verification / password-reset service.
func (app *Application) Verification() *service.VerificationService { return app.verification }

// MFA exposes the MFA service.
func (app *Application) MFA() *service.MFAService { return app.mfa }

// Logger exposes the process logger so the transport can attach it to
// request contexts via slogx.WithContext.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Run starts the background workers and blocks until a shutdown signal.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("account service started", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops the workers and closes the database.
func (app *Application) Shutdown() error {
	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("account service stopped")
	return nil
}
