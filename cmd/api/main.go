package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/summarizer-bot/meeting-summarizer/internal/adapter/handler"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/acs"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/external/teams"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/sse"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/storage"
	"github.com/summarizer-bot/meeting-summarizer/internal/infrastructure/store"
	"github.com/summarizer-bot/meeting-summarizer/internal/usecase/pipeline"
	"github.com/summarizer-bot/meeting-summarizer/pkg/ai"
	"github.com/summarizer-bot/meeting-summarizer/pkg/auth"
	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
	pkgvalidator "github.com/summarizer-bot/meeting-summarizer/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if cfg.Server.Environment == "development" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	log.Println("🔧 Initializing dependencies...")

	// Token providers are only needed in Entra auth mode; with API keys the
	// clients authenticate per request.
	var cognitiveTokens ai.TokenSource
	var botTokens teams.TokenSource
	if cfg.Entra.AuthMode == config.AuthModeEntra {
		log.Println("🔐 Using Entra ID client-credentials auth")
		cognitiveTokens = auth.NewTokenProvider(cfg.Entra, auth.ScopeCognitive)
		botTokens = auth.NewTokenProvider(cfg.Entra, auth.ScopeBotFramework)
	} else {
		log.Println("🔐 Using API key auth")
	}

	// Shared state
	audioStore := store.NewAudioBufferStore()
	transcripts := store.NewTranscriptLog()
	hub := sse.NewHub(logger)

	// Pipeline stages
	whisperClient := ai.NewWhisperClient(&cfg.Whisper, cognitiveTokens, logger)
	openaiClient := ai.NewOpenAIClient(&cfg.OpenAI, cognitiveTokens, logger)
	poster := teams.NewPoster(botTokens, logger)

	// Optional audio archive
	archive, err := storage.NewAudioArchive(&cfg.Archive, logger)
	if err != nil {
		log.Fatalf("Failed to initialize audio archive: %v", err)
	}
	var archiver pipeline.Archiver
	if archive != nil {
		log.Println("📦 Audio archive enabled")
		archiver = archive
	}

	// Meeting pipeline
	pipelineService := pipeline.NewService(
		audioStore,
		transcripts,
		whisperClient,
		openaiClient,
		poster,
		archiver,
		hub,
		pipeline.Intervals{
			Transcription: cfg.Pipeline.TranscriptionInterval,
			Summary:       cfg.SummaryInterval(),
		},
		logger,
	)

	// Call automation
	log.Println("📞 Initializing call automation client...")
	acsClient, err := acs.NewClient(&cfg.ACS, logger)
	if err != nil {
		log.Fatalf("Failed to initialize call automation client: %v", err)
	}
	registry := acs.NewCallRegistry()

	// Handlers
	mediaStream := handler.NewMediaStream(audioStore, logger)
	eventGrid := handler.NewEventGrid(cfg, acsClient, registry, mediaStream, pipelineService, hub, logger)
	callbacks := handler.NewCallbacks(acsClient, registry, mediaStream, pipelineService, hub, logger)
	demo := handler.NewDemo(pipelineService, registry, acsClient, hub, logger)

	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, eventGrid, callbacks, mediaStream, demo)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Stop meeting pipelines before the listener so no tick fires mid-shutdown.
	pipelineService.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
