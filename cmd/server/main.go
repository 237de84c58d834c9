package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/config"
	"github.com/goliatone/go-user-auth/federation/google"
	"github.com/goliatone/go-user-auth/mailer"
	"github.com/goliatone/go-user-auth/persistence"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	repo     auth.RepositoryManager
	mailer   auth.Mailer
	verifier *google.Verifier
	service  *auth.AccountService
	tokens   *auth.TokenServiceImpl
	srv      router.Server[*fiber.App]
	closers  []io.Closer
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load()
	if err != nil {
		lgr.GetLogger("config").Error("invalid configuration", "error", err, "details", auth.ValidationDetails(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{config: cfg, logger: lgr}

	for _, step := range []func(context.Context, *App) error{
		WithPersistence,
		WithMailer,
		WithFederation,
		WithAccounts,
		WithHTTPServer,
	} {
		if err := step(ctx, app); err != nil {
			app.GetLogger("app").Error("startup failed", "error", err)
			app.close()
			os.Exit(1)
		}
	}

	go func() {
		if err := app.srv.Serve(cfg.HTTPAddr); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}
	app.close()
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Database

	db, err := persistence.Open(ctx, persistence.Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	app.db = db
	app.closers = append(app.closers, db)

	if cfg.AutoMigrate {
		if err := persistence.Migrate(ctx, db, cfg.Driver); err != nil {
			return err
		}
	}

	app.repo = auth.NewRepositoryManager(db)
	if err := app.repo.Validate(); err != nil {
		return err
	}

	app.GetLogger("persistence").Info("database ready", "driver", cfg.Driver)
	return nil
}

func WithMailer(ctx context.Context, app *App) error {
	cfg := app.config.Mail
	logger := app.GetLogger("mailer")

	switch cfg.Transport {
	case config.MailTransportSMTP:
		app.mailer = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			FromName: cfg.FromName,
		}, logger)
	case config.MailTransportKafka:
		km := mailer.NewKafkaMailer(mailer.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			Username:     cfg.KafkaUser,
			Password:     cfg.KafkaPass,
			TLS:          cfg.KafkaTLS,
			WriteTimeout: cfg.KafkaTimeout,
			From:         cfg.From,
			FromName:     cfg.FromName,
		}, logger)
		app.mailer = km
		app.closers = append(app.closers, km)
	default:
		app.mailer = mailer.NewLogMailer(logger)
	}

	logger.Info("mail transport ready", "transport", cfg.Transport)
	return nil
}

func WithFederation(ctx context.Context, app *App) error {
	if !app.config.GoogleEnabled() {
		app.GetLogger("federation").Info("google sign-in disabled")
		return nil
	}

	cfg := app.config.Google
	verifier, err := google.New(ctx, google.Config{
		ClientIDs:       cfg.ClientIDs,
		JWKSURL:         cfg.JWKSURL,
		RefreshInterval: cfg.RefreshInterval,
	}, app.GetLogger("federation"))
	if err != nil {
		return err
	}
	app.verifier = verifier
	return nil
}

func WithAccounts(ctx context.Context, app *App) error {
	app.tokens = auth.NewTokenService(app.config.TokenConfig(), app.GetLogger("tokens"))

	opts := []auth.ServiceOption{
		auth.WithOptions(app.config.AccountOptions()),
		auth.WithLogger(app.GetLogger("accounts")),
	}
	if app.verifier != nil {
		opts = append(opts, auth.WithIdentityVerifier(app.verifier))
	}

	app.service = auth.NewAccountService(
		app.repo,
		auth.NewBcryptHasher(app.config.Account.BcryptCost),
		app.tokens,
		app.mailer,
		opts...,
	)
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	logger := app.GetLogger("http")

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		a := fiber.New(fiber.Config{
			AppName:               app.config.AppName,
			UnescapePath:          true,
			DisableStartupMessage: !app.config.Debug,
			ReadTimeout:           15 * time.Second,
			WriteTimeout:          15 * time.Second,
			ErrorHandler:          router.DefaultFiberErrorHandler(router.DefaultFiberErrorHandlerConfig()),
		})
		a.Use(recover.New())
		a.Use(requestid.New())
		return router.DefaultFiberOptions(a)
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	auth.RegisterAuthRoutes(
		srv.Router().Group(app.config.RoutePrefix),
		app.service,
		app.tokens,
		auth.WithControllerLogger(logger),
		auth.WithCookieConfig(app.config.CookieConfig()),
		auth.WithDebug(app.config.Debug),
	)

	app.srv = srv
	logger.Info("routes mounted", "prefix", app.config.RoutePrefix, "addr", app.config.HTTPAddr)
	return nil
}

func (a *App) close() {
	if a.verifier != nil {
		a.verifier.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
