package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/musayazlik/postify/api/handler"
	apiMiddleware "github.com/musayazlik/postify/api/middleware"
	"github.com/musayazlik/postify/api/routes"
	"github.com/musayazlik/postify/config"
	"github.com/musayazlik/postify/internal/repository"
	"github.com/musayazlik/postify/internal/seed"
	"github.com/musayazlik/postify/internal/service"
	"github.com/musayazlik/postify/internal/utils"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const rateLimiterTTL = 10 * time.Minute

func serve(c *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	sentryEnabled, flush, err := config.InitSentry(cfg)
	if err != nil {
		logger.WithError(err).Warn("sentry disabled")
	}
	defer flush()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	codeRepo, closeCodes, err := codeStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeCodes()

	var reporter service.ErrorReporter
	if sentryEnabled {
		reporter = config.SentryReporter{}
	}

	accessManager := &utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.TokenTTL,
	}

	codes := service.NewVerificationCodeManager(
		codeRepo,
		newMailer(cfg, logger),
		service.RandomCodeGenerator{},
		service.RealClock{},
		cfg.VerificationCodeTTL,
		logger,
		reporter,
	)

	authService := service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		repository.NewSecurityLogRepository(db),
		codes,
		service.BcryptPasswordHasher{},
		service.JWTAccessIssuer{Manager: accessManager},
		service.RealClock{},
		service.AuthConfig{},
		logger,
	)

	validator, err := handler.NewRequestValidator()
	if err != nil {
		return err
	}
	authHandler := handler.NewAuthHandler(authService, validator, logger)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	if sentryEnabled {
		app.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: accessManager, Sessions: authService}
	router := routes.NewRouter(
		app,
		authHandler,
		authMiddleware,
		apiMiddleware.NewRateLimiter(rate.Limit(cfg.AuthRatePerSecond), cfg.AuthRateBurst, rateLimiterTTL),
		apiMiddleware.NewRateLimiter(rate.Limit(cfg.LoginRatePerSecond), cfg.LoginRateBurst, rateLimiterTTL),
	)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		errCh <- app.StartServer(server)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return app.Shutdown(shutdownCtx)
}

func migrate(_ *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := openDatabase(cfg); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func seedUsers(c *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	user, err := seed.Users(c.Context, repository.NewUserRepository(db), service.BcryptPasswordHasher{}, service.RealClock{})
	if err != nil {
		return err
	}
	logger.WithField("email", user.Email).Info("seeded test user")
	return nil
}

func pruneCodes(c *cli.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	codeRepo, closeCodes, err := codeStore(c.Context, cfg, db)
	if err != nil {
		return err
	}
	defer closeCodes()

	clock := service.RealClock{}
	codes := service.NewVerificationCodeManager(codeRepo, nil, nil, clock, cfg.VerificationCodeTTL, logger, nil)
	deletedCodes, err := codes.Prune(c.Context)
	if err != nil {
		return err
	}
	deletedSessions, err := repository.NewSessionRepository(db).CleanupExpired(c.Context, clock.Now())
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"codes":    deletedCodes,
		"sessions": deletedSessions,
	}).Info("pruned expired records")
	return nil
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.NewLogger(cfg), nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func codeStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (repository.VerificationCodeRepository, func(), error) {
	if cfg.CodeStore != "redis" {
		return repository.NewVerificationCodeRepository(db), func() {}, nil
	}
	client, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRedisVerificationCodeRepository(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
}

func newMailer(cfg *config.Config, logger logrus.FieldLogger) service.EmailSender {
	switch cfg.Mail.Driver {
	case "resend":
		return service.NewResendEmailSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	case "smtp":
		return &service.SMTPEmailSender{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
			Timeout:  10 * time.Second,
		}
	default:
		return service.LogEmailSender{Logger: logger}
	}
}
