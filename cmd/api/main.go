package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"geolens/internal/cache"
	"geolens/internal/config"
	"geolens/internal/dataset"
	httphandler "geolens/internal/http"
	"geolens/internal/services/engine"
	"geolens/internal/services/hints"
	"geolens/internal/services/pipeline"
	"geolens/internal/vision"
)

func main() {
	var (
		port  = flag.String("port", "", "Port to run the server on (overrides PORT)")
		debug = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hint source, with optional redis memoization.
	hintClient := hints.NewClient(cfg.Hints.UploadURL, cfg.Hints.UploadKey, cfg.Hints.RelayURL)
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisCache.Close()
		hintClient.WithCache(redisCache, cfg.Hints.CacheTTL)
	}

	remotes, err := buildRemoteEngines(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build remote engines")
	}

	local := engine.NewLocalEngine(
		vision.NewClassifierClient(cfg.Vision.ClassifierURL),
		vision.NewTextRecognizerClient(cfg.Vision.TextRecognizerURL),
		dataset.NewLoader(cfg.Dataset.URL),
	)

	orchestrator := pipeline.New(hintClient, remotes, local, cfg.Pipeline.MinConfidence)

	router := httphandler.NewRouter()
	router.RegisterLocateRoutes(httphandler.NewLocateHandler(orchestrator, cfg.Server.MaxImageBytes))
	router.RegisterHealthRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
}

// buildRemoteEngines constructs the configured remote engines in priority
// order, skipping any whose API key is absent.
func buildRemoteEngines(ctx context.Context, cfg *config.Config) ([]engine.Engine, error) {
	var remotes []engine.Engine
	for _, name := range cfg.Engines.Order {
		switch name {
		case "gemini":
			if cfg.Gemini.APIKey == "" {
				log.Warn().Msg("GEMINI_API_KEY not set, skipping gemini engine")
				continue
			}
			e, err := engine.NewGeminiEngine(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
			if err != nil {
				return nil, err
			}
			remotes = append(remotes, e)
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				log.Warn().Msg("OPENAI_API_KEY not set, skipping openai engine")
				continue
			}
			e, err := engine.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
			if err != nil {
				return nil, err
			}
			remotes = append(remotes, e)
		default:
			log.Warn().Str("engine", name).Msg("Unknown engine in ENGINE_ORDER, skipping")
		}
	}
	return remotes, nil
}
