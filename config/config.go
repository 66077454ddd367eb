package config

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Groq      GroqConfig
	Auth      AuthConfig
	Data      DataConfig
	RateLimit RateLimitConfig
	Theme     string
}

type ServerConfig struct {
	Port string
}

type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	UsersFile string
	Enable2FA bool
}

type DataConfig struct {
	Dir           string
	LogsDir       string
	StateFile     string
	AdminCacheTTL time.Duration
}

type RateLimitConfig struct {
	MaxAIQueriesPerHour int
}

var (
	ErrMissingAPIKey    = errors.New("GROQ_API_KEY is not configured")
	ErrMissingJWTSecret = errors.New("JWT_SECRET_KEY is not configured")
)

func NewConfig() (*Config, error) {
	// Configure Viper to read .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Enable automatic environment variable loading
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	viper.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1/chat/completions")
	viper.SetDefault("GROQ_TIMEOUT", "30s")
	viper.SetDefault("DATA_DIR", "./data/raw")
	viper.SetDefault("LOGS_DIR", "./logs")
	viper.SetDefault("RATE_LIMITER_STATE_FILE", "./data/rate_limiter_state.json")
	viper.SetDefault("USERS_FILE", "./data/users.json")
	viper.SetDefault("CACHE_TTL_ADMIN", "3600s")
	viper.SetDefault("MAX_AI_QUERIES_PER_HOUR", 0)
	viper.SetDefault("ENABLE_2FA", false)
	viper.SetDefault("DASHBOARD_THEME", "dark")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config
	config.Server.Port = viper.GetString("SERVER_PORT")

	// --- Groq ---
	config.Groq.APIKey = viper.GetString("GROQ_API_KEY")
	config.Groq.Model = viper.GetString("GROQ_MODEL")
	config.Groq.BaseURL = viper.GetString("GROQ_BASE_URL")
	config.Groq.Timeout = viper.GetDuration("GROQ_TIMEOUT")
	if config.Groq.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	// --- Auth ---
	config.Auth.JWTSecret = viper.GetString("JWT_SECRET_KEY")
	config.Auth.UsersFile = viper.GetString("USERS_FILE")
	config.Auth.Enable2FA = viper.GetBool("ENABLE_2FA")
	if config.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	// --- Data ---
	config.Data.Dir = viper.GetString("DATA_DIR")
	config.Data.LogsDir = viper.GetString("LOGS_DIR")
	config.Data.StateFile = viper.GetString("RATE_LIMITER_STATE_FILE")
	config.Data.AdminCacheTTL = viper.GetDuration("CACHE_TTL_ADMIN")

	// --- Rate limiting ---
	config.RateLimit.MaxAIQueriesPerHour = viper.GetInt("MAX_AI_QUERIES_PER_HOUR")

	config.Theme = viper.GetString("DASHBOARD_THEME")

	log.Info().
		Str("port", config.Server.Port).
		Str("model", config.Groq.Model).
		Str("data_dir", config.Data.Dir).
		Bool("enable_2fa", config.Auth.Enable2FA).
		Msg("Config loaded")
	return &config, nil
}
