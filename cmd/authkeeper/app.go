package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nkiryanov/authkeeper/internal/db"
	"github.com/nkiryanov/authkeeper/internal/handlers"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/notify"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/service/account"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/ratelimit"
	"github.com/nkiryanov/authkeeper/internal/service/reset"
	"github.com/nkiryanov/authkeeper/internal/service/sweeper"
)

const (
	shutdownTimeout = 5 * time.Second
	rateLimitWindow = time.Hour
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	sweeper *sweeper.Sweeper

	// Released in reverse order on stop
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}

	// Release already acquired resources if initialization failed
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize logger
	var out io.Writer = os.Stderr
	if c.LogFile != "" {
		file := logger.NewFileWriter(c.LogFile)
		app.closers = append(app.closers, func() { _ = file.Close() })
		out = io.MultiWriter(os.Stderr, file)
	}
	app.logger, err = logger.New(c.Environment, c.LogLevel, out)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	accountService, err := account.NewService(auth.DefaultHasher, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating account service. Err: %w", err)
	}

	mailer, err := newMailer(ctx, c, app.logger)
	if err != nil {
		return nil, err
	}

	resetCfg := reset.Config{BaseURL: c.BaseURL, TTL: c.ResetTokenTTL}
	if c.RedisURL != "" && c.ResetRateLimit > 0 {
		client, err := ratelimit.NewClient(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })

		limiter, err := ratelimit.New(client, ratelimit.Config{Limit: c.ResetRateLimit, Window: rateLimitWindow, Prefix: "rl:reset:"})
		if err != nil {
			return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
		}
		resetCfg.Limiter = limiter
	}

	resetService, err := reset.NewService(resetCfg, accountService, storage, mailer, app.logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating reset service. Err: %w", err)
	}

	if c.ResetRetention > 0 {
		app.sweeper = sweeper.New(sweeper.Config{Retention: c.ResetRetention}, storage.ResetToken(), app.logger)
	}

	app.Handler = handlers.NewRouter(
		handlers.RouterConfig{AllowedOrigins: c.AllowedOrigins, StaticDir: c.StaticDir},
		accountService,
		resetService,
		tokenManager,
		app.logger,
	)

	return app, nil
}

// SES mailer if sender configured, log only mailer otherwise
func newMailer(ctx context.Context, c *Config, l logger.Logger) (notify.Mailer, error) {
	if c.MailFrom == "" {
		l.Warn("Mail sender not configured, reset emails are only logged")
		return notify.NewLogMailer(l), nil
	}

	mailer, err := notify.NewSESMailer(ctx, notify.SESConfig{
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		From:            c.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating ses mailer. Err: %w", err)
	}

	return mailer, nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	var sweeperStopped <-chan struct{}
	if s.sweeper != nil {
		sweeperStopped = s.sweeper.Run(srvCtx)
	}

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	if sweeperStopped != nil {
		<-sweeperStopped
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
