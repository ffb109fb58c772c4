package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentfloor/agentfloor/internal/api"
	"github.com/agentfloor/agentfloor/internal/auth"
	"github.com/agentfloor/agentfloor/internal/config"
	"github.com/agentfloor/agentfloor/internal/event"
	"github.com/agentfloor/agentfloor/internal/gateway"
	"github.com/agentfloor/agentfloor/internal/metrics"
	"github.com/agentfloor/agentfloor/internal/prefs"
	"github.com/agentfloor/agentfloor/internal/server"
	"github.com/agentfloor/agentfloor/internal/session"
	"github.com/agentfloor/agentfloor/internal/storage"
	"github.com/agentfloor/agentfloor/internal/types"
	"github.com/agentfloor/agentfloor/internal/world"
	"github.com/agentfloor/agentfloor/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("gateway_url", cfg.GatewayURL).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting agentfloor server")

	// Initialize JWKS if configured
	if cfg.AuthJWKSURL != "" {
		if err := auth.InitJWKS(cfg.AuthJWKSURL); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize JWKS")
		}
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create metrics collector
	m := metrics.New()

	// Create world store
	store := world.NewStore(log.Logger)

	// Create timeline archive store
	archiveStore, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize timeline storage")
	}
	archiver := storage.NewArchiver(archiveStore, log.Logger)
	go archiver.Start(ctx)
	store.SetArchiver(archiver.Enqueue)

	// Create gateway transport and RPC client
	transport := gateway.NewTransport(cfg.GatewayURL, log.Logger)
	rpc := gateway.NewClient(transport, cfg.RPCTimeout, log.Logger)
	rpc.SetRecorder(m)

	// Create event throttle feeding the world store. High-priority frames
	// apply synchronously, the rest are batched on the frame interval.
	throttle := event.NewThrottle(
		cfg.FrameInterval,
		func(frame types.EventFrame) {
			m.RecordFrameImmediate()
			store.ProcessAgentEvent(frame)
		},
		func(frames []types.EventFrame) {
			m.RecordFramesBatched(len(frames))
			for _, frame := range frames {
				store.ProcessAgentEvent(frame)
			}
		},
		log.Logger,
	)
	throttle.SetDropHandler(m.RecordFramesDropped)
	defer throttle.Destroy()

	transport.SubscribeEvents(func(frame types.EventFrame) {
		m.RecordFrameReceived()
		throttle.Push(frame)
	})
	go transport.Run(ctx)

	// Fetch the initial agent roster once the gateway connection is up
	go bootstrapRoster(ctx, rpc, store, log.Logger)

	// Create session poller
	poller := session.NewPoller(rpc, store, cfg.PollInterval, log.Logger)
	go poller.Start(ctx)

	// Create renderer hub and broadcaster
	hub := server.NewHub(m, log.Logger)
	go hub.Run()

	broadcaster := server.NewBroadcaster(store, hub, cfg.BroadcastInterval, m, log.Logger)
	go broadcaster.Start(ctx)

	wsHandler := server.NewHandler(hub, store, cfg, m, log.Logger)

	// REST handlers
	prefsStore := prefs.NewFileStore(cfg.PrefsPath, log.Logger)
	agentsHandler := api.NewAgentsHandler(store, log.Logger)
	timelineHandler := api.NewTimelineHandler(archiveStore, log.Logger)
	layoutHandler := api.NewLayoutHandler(prefsStore, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", m.Handler())

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)
		r.Route("/api", func(r chi.Router) {
			r.Get("/agents", agentsHandler.GetAgents)
			r.Get("/agents/{agentId}", agentsHandler.GetAgent)
			r.Get("/timeline", timelineHandler.GetTimeline)
			r.Get("/layout", layoutHandler.GetLayout)
			r.Put("/layout", layoutHandler.PutLayout)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services
	cancel()
	transport.Close()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// bootstrapRoster fetches the initial agent list from the gateway, retrying
// until the connection is established
func bootstrapRoster(ctx context.Context, rpc *gateway.Client, store *world.Store, logger zerolog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := rpc.Request(ctx, "agents.list", nil)
			if err != nil {
				logger.Debug().Err(err).Msg("roster fetch failed, retrying")
				continue
			}

			var result struct {
				Agents []world.AgentSeed `json:"agents"`
			}
			if err := json.Unmarshal(payload, &result); err != nil {
				logger.Error().Err(err).Msg("failed to parse agent roster")
				continue
			}

			store.InitAgents(result.Agents)
			logger.Info().Int("agents", len(result.Agents)).Msg("agent roster initialized")
			return
		}
	}
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"agentfloor"}`)
}
