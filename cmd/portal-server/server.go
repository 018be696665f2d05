package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/portal/internal/config"
	"github.com/ehr/portal/internal/domain/admin"
	"github.com/ehr/portal/internal/domain/doctor"
	"github.com/ehr/portal/internal/domain/notification"
	"github.com/ehr/portal/internal/domain/patient"
	"github.com/ehr/portal/internal/domain/settings"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/db"
	"github.com/ehr/portal/internal/platform/dispatch"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/middleware"
	"github.com/ehr/portal/internal/platform/realtime"
)

const (
	avatarBucket = "avatars"
	tokenIssuer  = "portal"

	// Profile pictures are capped at 5MB; leave room for multipart framing.
	bodyLimit = "6M"

	dispatchWorkers = 8
	shutdownTimeout = 10 * time.Second
)

func runServer(devUser, devRole string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, logger, pool, err := setup(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer pool.Close()

	// Storage
	var objects blobstore.Store = blobstore.NewPGStore(pool)
	if cfg.StorageBackend == config.StorageMemory {
		objects = blobstore.NewMemoryStore()
	}
	images := media.NewBucket(objects, avatarBucket, blobstore.URLs{BaseURL: cfg.PublicURL})

	// Delivery
	sender := dispatch.LogSender{Logger: logger}
	dispatcher, err := dispatch.NewDispatcher(sender, sender, dispatch.NewTemplateEngine(), dispatchWorkers, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close(5 * time.Second)

	// Auth
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.SessionTTL, tokenIssuer)
	authSvc := auth.NewService(auth.NewUserRepoPG(pool), tokens, logger)

	// Domain services
	doctorSvc := doctor.NewService(doctor.NewRepo(pool), images, logger)
	doctorSvc.SetRegistrar(authSvc)
	doctorSvc.SetMailer(dispatcher)

	patientSvc := patient.NewService(patient.NewRepo(pool), images, logger)
	patientSvc.SetRegistrar(authSvc)

	adminSvc := admin.NewService(admin.NewRepo(pool), images, logger)
	adminSvc.SetRegistrar(authSvc)

	settingsSvc := settings.NewService(settings.NewRepo(pool), logger)

	hub := realtime.NewHub(logger)
	notificationSvc := notification.NewService(notification.NewRepo(pool), logger)
	notificationSvc.SetFeed(hub)
	notificationSvc.SetDelivery(settingsSvc, newContactDirectory(doctorSvc, patientSvc, adminSvc), dispatcher)
	if cfg.RealtimeSource == config.RealtimePostgres {
		go realtime.NewPGListener(pool, realtime.NotificationChannel, hub, logger).Run(ctx)
	} else {
		notificationSvc.SetPublisher(hub)
	}

	monitor := db.NewMonitor(pool, cfg.LivenessInterval, logger)
	go monitor.Run(ctx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.RequestID(logger))
	e.Use(middleware.Logger(logger, "/health"))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.APIKeyHeader, "X-API-Key"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(auth.APIKeyMiddleware(cfg.AnonKey, auth.PathPrefixSkipper("/health", blobstore.PublicPrefix)))
	e.Use(auth.SessionMiddleware(tokens))
	if cfg.IsDev() && devUser != "" {
		logger.Warn().Str("user_id", devUser).Str("role", devRole).Msg("development session enabled")
		e.Use(auth.DevSession(devUser, devRole))
	}

	e.GET("/health", db.HealthHandler(monitor, pool))

	objectsHandler := blobstore.NewHandler(objects)
	objectsHandler.RegisterPublicRoutes(e)

	realtime.NewWebSocketHandler(hub, sessionTopics, cfg.CORSOrigins).
		RegisterRoutes(e.Group(""), auth.RequireSession())

	api := e.Group("/api/v1")
	api.Use(only(http.MethodPost, "/api/v1/auth/token", middleware.NewRateLimiter(middleware.SignInRateLimit()).Middleware()))

	auth.NewHandler(authSvc).RegisterRoutes(api)
	doctor.NewHandler(doctorSvc, logger).RegisterRoutes(api)
	patient.NewHandler(patientSvc, logger).RegisterRoutes(api)
	admin.NewHandler(adminSvc, logger).RegisterRoutes(api)
	notification.NewHandler(notificationSvc).RegisterRoutes(api)
	settings.NewHandler(settingsSvc, logger).RegisterRoutes(api)
	objectsHandler.RegisterAdminRoutes(api.Group("/admin", auth.RequireRole(auth.RoleAdmin)))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// sessionTopics lets a realtime client follow its own notification topic.
// Admins may follow any topic.
func sessionTopics(c echo.Context) func(topic string) bool {
	s, ok := auth.SessionFromContext(c.Request().Context())
	if !ok {
		return func(string) bool { return false }
	}
	if s.Role == auth.RoleAdmin {
		return func(string) bool { return true }
	}
	own := realtime.NotificationTopic(s.UserID)
	return func(topic string) bool { return topic == own }
}

// only applies mw to requests routed to method and path.
func only(method, path string, mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		limited := mw(next)
		return func(c echo.Context) error {
			if c.Request().Method == method && c.Path() == path {
				return limited(c)
			}
			return next(c)
		}
	}
}
