package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/packstation/station-server-go/internal/config"
	"github.com/packstation/station-server-go/internal/coordinator"
	"github.com/packstation/station-server-go/internal/database"
	"github.com/packstation/station-server-go/internal/events"
	"github.com/packstation/station-server-go/internal/gate"
	"github.com/packstation/station-server-go/internal/handler"
	"github.com/packstation/station-server-go/internal/jobs"
	"github.com/packstation/station-server-go/internal/middleware"
	"github.com/packstation/station-server-go/internal/redis"
	"github.com/packstation/station-server-go/internal/repository"
	"github.com/packstation/station-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	identityRepo := repository.NewIdentityRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	scanRepo := repository.NewScanRepository(db.DB)

	broker := events.NewBroker(redisClient, cfg.StationID)
	defer broker.Close()

	admissionGate := gate.NewGate(scanRepo, cfg.DedupGuard(), cfg.ScanRateLimit)
	coord := coordinator.New(
		identityRepo, sessionRepo, admissionGate, broker,
		cfg.TagCooldown(), cfg.ResetSettle(), cfg.LogoutSettle(),
	)
	stationService := service.NewStationService(admissionGate, coord, scanRepo, broker)

	authMiddleware := middleware.NewStationAuthMiddleware(cfg.StationKey)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isProduction)

	stationHandler := handler.NewStationHandler(coord, stationService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(securityHeaders.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"stationId": cfg.StationID,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/station", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", stationHandler.Routes())
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(
		sessionRepo, scanRepo,
		cfg.MaxShift(), cfg.ScanRetention(), config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), config.SessionShutdownTimeout)
	defer logoutCancel()
	coord.Shutdown(logoutCtx)

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
