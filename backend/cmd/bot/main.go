package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxa/backend/internal/adapter"
	"voxa/backend/internal/capability"
	"voxa/backend/internal/discordvoice"
	"voxa/backend/internal/graph"
	"voxa/backend/internal/httpapi"
	"voxa/backend/internal/voice"
	"voxa/backend/pkg/config"
	"voxa/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting voice agent...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Optional transcript store; skipped entirely when no URI is configured
	var transcripts voice.TranscriptLog
	if cfg.Neo4jURI != "" {
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			log.Fatal("Failed to create Neo4j driver", zap.Error(err))
		}
		defer driver.Close(context.Background())

		if err := driver.VerifyConnectivity(context.Background()); err != nil {
			log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
		}
		transcripts = graph.NewRepository(driver)
		log.Info("Transcript log enabled", zap.String("uri", cfg.Neo4jURI))
	}

	// Create Discord session
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	// Required intents:
	// - IntentsGuilds: Access to guild and channel information
	// - IntentsGuildVoiceStates: Track voice state changes (REQUIRED for voice connections)
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	scratch, err := voice.NewScratchStore(cfg.ScratchDir, time.Duration(cfg.ScratchTTLMin)*time.Minute, log)
	if err != nil {
		log.Fatal("Failed to create scratch store", zap.Error(err))
	}

	transcriber := capability.NewTranscriber(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.STTModel, log)
	synthesizer := capability.NewSynthesizer(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.TTSModel, cfg.TTSVoice, scratch, log)
	replyAgent := adapter.NewLLMAdapter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ReplyModel, log)

	// Open connection before building the manager so SelfUserID is known
	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	selfID := ""
	if dg.State != nil && dg.State.User != nil {
		selfID = dg.State.User.ID
	}

	manager, err := voice.NewManager(voice.Options{
		Transport:    discordvoice.NewTransport(dg, time.Duration(cfg.SilenceGapMS)*time.Millisecond, log),
		Channels:     discordvoice.NewChannelResolver(dg),
		NewPlayer:    discordvoice.NewPlayer(log),
		NewDecoder:   discordvoice.NewDecoder,
		Transcriber:  transcriber,
		Agent:        replyAgent,
		Synthesizer:  synthesizer,
		Resolver:     discordvoice.NewResolver(dg, log),
		Scratch:      scratch,
		Transcripts:  transcripts,
		SelfUserID:   selfID,
		AgentID:      cfg.AgentID,
		AutoJoin:     voice.ParseAutoJoinList(cfg.VoiceAutoJoin),
		MinUtterance: time.Duration(cfg.MinUtteranceMS) * time.Millisecond,
		Logger:       log,
	})
	if err != nil {
		log.Fatal("Failed to create voice manager", zap.Error(err))
	}

	// Join configured channels once the gateway is up
	go func() {
		res := manager.AutoJoin(context.Background())
		log.Info("Auto-join finished", zap.String("result", res.Message))
	}()

	// Control-plane HTTP API
	apiServer := httpapi.NewServer(manager, cfg.APIToken, log)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Router(cfg.IsProduction()),
	}
	go func() {
		log.Info("HTTP API listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Voice agent is running. Press CTRL-C to exit.")

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	log.Info("Shutting down voice agent...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	manager.Destroy()
}
