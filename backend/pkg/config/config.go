package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Discord
	DiscordBotToken string

	// AI gateway (OpenAI-compatible; LiteLLM or upstream)
	OpenAIBaseURL string
	OpenAIAPIKey  string
	ReplyModel    string
	STTModel      string
	TTSModel      string
	TTSVoice      string
	AgentID       string

	// Voice
	VoiceAutoJoin  string // "guildID:channelID,guildID:channelID"
	ScratchDir     string
	ScratchTTLMin  int
	SilenceGapMS   int // silence before an utterance is considered ended
	MinUtteranceMS int // shorter segments are dropped as noise

	// Neo4j transcript log (optional; disabled when URI is empty)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Control-plane API
	APIToken string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "http://localhost:4000"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		ReplyModel:      getEnv("REPLY_MODEL", "gpt-4o-mini"),
		STTModel:        getEnv("STT_MODEL", "whisper-1"),
		TTSModel:        getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:        getEnv("TTS_VOICE", "alloy"),
		AgentID:         getEnv("AGENT_ID", "default"),
		VoiceAutoJoin:   getEnv("VOICE_AUTO_JOIN", ""),
		ScratchDir:      getEnv("SCRATCH_DIR", ""),
		ScratchTTLMin:   getEnvInt("SCRATCH_TTL_MIN", 30),
		SilenceGapMS:    getEnvInt("SILENCE_GAP_MS", 1000),
		MinUtteranceMS:  getEnvInt("MIN_UTTERANCE_MS", 350),
		Neo4jURI:        getEnv("NEO4J_URI", ""),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", ""),
		APIToken:        getEnv("API_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.OpenAIBaseURL == "" {
		return fmt.Errorf("OPENAI_BASE_URL is required")
	}
	if c.ReplyModel == "" {
		return fmt.Errorf("REPLY_MODEL is required")
	}
	if c.SilenceGapMS <= 0 {
		return fmt.Errorf("SILENCE_GAP_MS must be positive")
	}
	if c.MinUtteranceMS < 0 {
		return fmt.Errorf("MIN_UTTERANCE_MS must not be negative")
	}
	// API key is optional when the gateway accepts dummy credentials
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
