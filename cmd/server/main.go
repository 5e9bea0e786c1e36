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

	"github.com/openclaw/interview-server-go/internal/audio"
	"github.com/openclaw/interview-server-go/internal/config"
	"github.com/openclaw/interview-server-go/internal/database"
	"github.com/openclaw/interview-server-go/internal/handler"
	"github.com/openclaw/interview-server-go/internal/interview"
	"github.com/openclaw/interview-server-go/internal/jobs"
	"github.com/openclaw/interview-server-go/internal/llm"
	"github.com/openclaw/interview-server-go/internal/middleware"
	"github.com/openclaw/interview-server-go/internal/redis"
	"github.com/openclaw/interview-server-go/internal/repository"
	"github.com/openclaw/interview-server-go/internal/service"
	"github.com/openclaw/interview-server-go/internal/sse"
	"github.com/openclaw/interview-server-go/internal/store"
	"github.com/openclaw/interview-server-go/internal/voice"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
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
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Msg("database connected")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	var sessions store.Store
	var expiring jobs.ExpiringStore
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		sessions = store.NewRedisStore(redisClient.Client, cfg.SessionTTL())
	default:
		memoryStore := store.NewMemoryStore(cfg.SessionTTL())
		sessions, expiring = memoryStore, memoryStore
	}
	log.Info().Str("backend", cfg.SessionBackend).Dur("ttl", cfg.SessionTTL()).Msg("session store ready")

	interviewRepo := repository.NewInterviewRepository(db.DB)
	roleRepo := repository.NewRoleRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	interviewer := llm.NewInterviewer(llmClient, cfg.InterviewerName)
	transcriber := voice.NewTranscriber(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.TranscriptionModel)
	synthesizer := voice.NewSynthesizer(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.SpeechModel, cfg.SpeechVoice, cfg.SpeechFormat)

	finalizer := interview.NewFinalizer(llm.NewEvaluator(llmClient), interviewRepo, broker, cfg.FinalizeTimeout())

	interviewService := service.NewInterviewService(service.InterviewServiceDeps{
		Sessions:    sessions,
		Interviews:  interviewRepo,
		Roles:       roleRepo,
		Guidelines:  llm.NewGuidelineWriter(llmClient),
		Generator:   interviewer,
		Synthesizer: synthesizer,
	})
	roleService := service.NewRoleService(roleRepo)

	var limiter middleware.Limiter = middleware.NewMemoryRateLimiter()
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
	}
	startRateLimit := middleware.NewRateLimitMiddleware(limiter, cfg.StartRateLimitPerMin, "start")

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	corsMiddleware := middleware.NewCORSMiddleware(cfg.AllowedOrigins)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxStartBodySize)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	bindings := handler.NewBindingTracker()
	audioGateway := handler.NewAudioGateway(interviewService, interview.Deps{
		Store:       sessions,
		Transcriber: transcriber,
		Generator:   interviewer,
		Synthesizer: synthesizer,
		Finalizer:   finalizer,
	}, bindings, handler.AudioGatewayConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AudioDir:       cfg.AudioDir,
		AudioLimits: audio.Limits{
			MaxFrames: cfg.AudioMaxFrames,
			MaxBytes:  cfg.AudioMaxBytes,
		},
		CollaboratorTimeout: cfg.CollaboratorTimeout(),
	})
	interviewHandler := handler.NewInterviewHandler(interviewService)
	roleHandler := handler.NewRoleHandler(roleService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"timestamp":         time.Now().UnixMilli(),
			"activeConnections": bindings.Len(),
		})
	})

	// Long-lived streams stay outside the request timeout.
	r.Handle("/ws/audio", audioGateway)
	r.Get("/v1/events", eventsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(securityHeadersMiddleware.Handler)

		r.Mount("/v1/interviews", interviewHandler.Routes(startRateLimit.Handler))
		r.Mount("/v1/sessions", interviewHandler.SessionRoutes())
		r.Mount("/v1/roles", roleHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(expiring, cfg.AudioDir, config.AudioArtifactMaxAge, config.CleanupJobInterval)
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

	// Hijacked websocket connections are not tracked by Shutdown.
	bindings.CloseAll()
	if err := bindings.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Int("connections", bindings.Len()).Msg("audio connections still open at shutdown")
	}
	if err := finalizer.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("interview finalization still running at shutdown")
	}

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
