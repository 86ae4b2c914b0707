package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AuthModeAPIKey authenticates against Azure OpenAI with per-resource API keys.
// AuthModeEntra uses Entra ID client-credentials tokens instead.
const (
	AuthModeAPIKey = "apikey"
	AuthModeEntra  = "entra"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Entra    EntraConfig
	Whisper  WhisperConfig
	OpenAI   OpenAIConfig
	ACS      ACSConfig
	Teams    TeamsConfig
	Pipeline PipelineConfig
	Archive  ArchiveConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// EntraConfig holds Entra ID app registration credentials used for
// client-credentials token exchange and Bot Framework auth.
type EntraConfig struct {
	AppID     string
	AppSecret string
	TenantID  string
	AuthMode  string // "apikey" or "entra"
}

// WhisperConfig holds the speech-to-text deployment settings
type WhisperConfig struct {
	Endpoint string
	APIKey   string
}

// OpenAIConfig holds the summarization deployment settings
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// ACSConfig holds Azure Communication Services settings
type ACSConfig struct {
	ConnectionString string
	CallbackURI      string
}

// TeamsConfig identifies the conversation summaries are delivered to
type TeamsConfig struct {
	ServiceURL     string
	ConversationID string
}

// PipelineConfig holds per-meeting scheduling settings
type PipelineConfig struct {
	TranscriptionInterval  time.Duration
	SummaryIntervalMinutes int
}

// ArchiveConfig holds optional object-storage settings for drained audio
type ArchiveConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3978"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGINS", "*")},
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Entra: EntraConfig{
			AppID:     getEnv("MICROSOFT_APP_ID", ""),
			AppSecret: getEnv("MICROSOFT_APP_PASSWORD", ""),
			TenantID:  getEnv("MICROSOFT_APP_TENANT_ID", ""),
			AuthMode:  getEnv("AUTH_MODE", AuthModeAPIKey),
		},
		Whisper: WhisperConfig{
			Endpoint: getEnv("WHISPER_ENDPOINT", ""),
			APIKey:   getEnv("WHISPER_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			Endpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
			APIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
			Deployment: getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", ""),
		},
		ACS: ACSConfig{
			ConnectionString: getEnv("ACS_CONNECTION_STRING", ""),
			CallbackURI:      getEnv("CALLBACK_URI", ""),
		},
		Teams: TeamsConfig{
			ServiceURL:     getEnv("TEAMS_SERVICE_URL", "https://smba.trafficmanager.net/teams/"),
			ConversationID: getEnv("TEAMS_CONVERSATION_ID", ""),
		},
		Pipeline: PipelineConfig{
			TranscriptionInterval:  getEnvAsDuration("TRANSCRIPTION_INTERVAL", "30s"),
			SummaryIntervalMinutes: getEnvAsInt("SUMMARY_INTERVAL_MINUTES", 5),
		},
		Archive: ArchiveConfig{
			Enabled:         getEnvAsBool("ARCHIVE_ENABLED", false),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("ARCHIVE_BUCKET", "meeting-audio"),
			UseSSL:          getEnvAsBool("ARCHIVE_USE_SSL", false),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Whisper.Endpoint == "" {
		return fmt.Errorf("WHISPER_ENDPOINT is required")
	}
	if c.OpenAI.Endpoint == "" {
		return fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if c.OpenAI.Deployment == "" {
		return fmt.Errorf("AZURE_OPENAI_DEPLOYMENT_NAME is required")
	}
	if c.ACS.ConnectionString == "" {
		return fmt.Errorf("ACS_CONNECTION_STRING is required")
	}
	if c.ACS.CallbackURI == "" {
		return fmt.Errorf("CALLBACK_URI is required")
	}
	if c.Teams.ConversationID == "" {
		return fmt.Errorf("TEAMS_CONVERSATION_ID is required")
	}
	switch c.Entra.AuthMode {
	case AuthModeAPIKey, AuthModeEntra:
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeAPIKey, AuthModeEntra, c.Entra.AuthMode)
	}
	if c.Entra.AuthMode == AuthModeEntra {
		if c.Entra.AppID == "" || c.Entra.AppSecret == "" || c.Entra.TenantID == "" {
			return fmt.Errorf("MICROSOFT_APP_ID, MICROSOFT_APP_PASSWORD and MICROSOFT_APP_TENANT_ID are required when AUTH_MODE=entra")
		}
	}
	if c.Pipeline.SummaryIntervalMinutes <= 0 {
		return fmt.Errorf("SUMMARY_INTERVAL_MINUTES must be positive")
	}
	return nil
}

// SummaryInterval returns the summary period as a duration
func (c *Config) SummaryInterval() time.Duration {
	return time.Duration(c.Pipeline.SummaryIntervalMinutes) * time.Minute
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
