package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/stanleysince1993/MedicAI/internal/config"
	"github.com/stanleysince1993/MedicAI/internal/domain/alert"
	"github.com/stanleysince1993/MedicAI/internal/domain/careplan"
	"github.com/stanleysince1993/MedicAI/internal/domain/dashboard"
	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
	"github.com/stanleysince1993/MedicAI/internal/platform/auth"
	"github.com/stanleysince1993/MedicAI/internal/platform/db"
	"github.com/stanleysince1993/MedicAI/internal/platform/metrics"
	"github.com/stanleysince1993/MedicAI/internal/platform/middleware"
	"github.com/stanleysince1993/MedicAI/internal/platform/mqtt"
	"github.com/stanleysince1993/MedicAI/internal/platform/scheduler"
)

func newEcho(cfg *config.Config, logger zerolog.Logger, a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(cfg.StoreDriver, a.health))
	e.GET("/metrics", metrics.Handler())

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	authn := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authn = auth.DevAuthMiddleware(jwtCfg)
	}
	apiV1 := e.Group("/api/v1", authn)
	fhirGroup := e.Group("/fhir", authn)

	observation.NewHandler(a.observations).RegisterRoutes(apiV1, fhirGroup)
	careplan.NewHandler(a.careplans).RegisterRoutes(apiV1, fhirGroup)
	alert.NewHandler(a.engine).RegisterRoutes(apiV1, fhirGroup)
	dashboard.NewHandler(a.dashboard).RegisterRoutes(apiV1)
	return e
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialise services")
		return err
	}
	defer a.Close()

	sched := scheduler.New(logger)
	err = sched.Add("missing-data-sweep", cfg.WatchdogSchedule, func(ctx context.Context) error {
		raised, err := a.engine.SweepMissingData(ctx, a.careplans)
		if raised > 0 {
			logger.Info().Int("raised", raised).Msg("missing-data sweep raised alerts")
		}
		return err
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.MQTTBroker != "" {
		sub := mqtt.NewSubscriber(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		}, a.engine.HandleDeviceMessage, logger)
		if err := sub.Start(); err != nil {
			return err
		}
		defer sub.Stop()
	}

	e := newEcho(cfg, logger, a)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Str("events", cfg.EventSink).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
