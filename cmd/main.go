package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AhmadIb227/syria-gpt/api/handler"
	apiMiddleware "github.com/AhmadIb227/syria-gpt/api/middleware"
	"github.com/AhmadIb227/syria-gpt/api/routes"
	"github.com/AhmadIb227/syria-gpt/config"
	"github.com/AhmadIb227/syria-gpt/internal/bootstrap"
	"github.com/AhmadIb227/syria-gpt/internal/metrics"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := cfg.NewLogger()
	logger.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	components, err := bootstrap.Build(ctx, cfg, logger, recorder)
	if err != nil {
		logger.WithError(err).Fatal("bootstrap")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.WithError(err).Warn("close resources")
		}
	}()

	scheduler, err := schedulePurge(cfg.PurgeSchedule, components.Service, logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid PURGE_SCHEDULE")
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	authHandler := handler.NewAuthHandler(components.Service, validator.New())
	authHandler.Log = logger
	authHandler.RefreshTTL = cfg.RefreshTokenTTL
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.CookieSecure

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(apiMiddleware.Metrics(recorder))
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

	authMiddleware := apiMiddleware.AuthMiddleware{Tokens: components.Tokens}
	router := routes.NewRouter(app, authHandler, authMiddleware, recorder.Handler())
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
	logger.Info("server stopped")
}

// schedulePurge returns nil when no schedule is configured.
func schedulePurge(spec string, svc *service.AuthService, logger logrus.FieldLogger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		report, err := svc.PurgeExpired(ctx)
		entry := logger.WithFields(logrus.Fields{
			"verification_tokens":   report.VerificationTokens,
			"sessions":              report.Sessions,
			"two_factor_challenges": report.TwoFactorChallenges,
		})
		if err != nil {
			entry.WithError(err).Error("purge expired tokens")
			return
		}
		entry.Info("purged expired tokens")
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}
