package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	ServerPort      string        `env:"SERVER_PORT"      envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"5m"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// DBPath is where run history is kept. Empty disables history.
	DBPath           string        `env:"DB_PATH"            envDefault:"./data/runs.db"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION"  envDefault:"720h"`
	HistoryPruneSpec string        `env:"HISTORY_PRUNE_SPEC" envDefault:"@daily"`

	// RequireYouTubeDomain gates identifier extraction on the input naming
	// youtube.com or youtu.be.
	RequireYouTubeDomain bool `env:"EXTRACT_REQUIRE_DOMAIN" envDefault:"true"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	Log        LogConfig        `envPrefix:"LOG_"`
	Transcript TranscriptConfig `envPrefix:"TRANSCRIPT_"`
	Summary    SummaryConfig    `envPrefix:"SUMMARY_"`
	Retry      RetryConfig      `envPrefix:"RETRY_"`
}

type LogConfig struct {
	Level      string `env:"LEVEL"       envDefault:"info"`
	Format     string `env:"FORMAT"      envDefault:"json"`
	Dir        string `env:"DIR"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE"     envDefault:"28"`
}

type TranscriptConfig struct {
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"60s"`
	Languages []string      `env:"LANGUAGES"  envDefault:"en"`
	UserAgent string        `env:"USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
}

type SummaryConfig struct {
	Provider      string        `env:"PROVIDER"        envDefault:"gemini"`
	Model         string        `env:"MODEL"           envDefault:"gemini-2.5-flash"`
	Timeout       time.Duration `env:"TIMEOUT"         envDefault:"2m"`
	MaxInputChars int           `env:"MAX_INPUT_CHARS" envDefault:"400000"`
	Chunking      bool          `env:"CHUNKING"        envDefault:"true"`
	ChunkChars    int           `env:"CHUNK_CHARS"     envDefault:"100000"`
}

type RetryConfig struct {
	MaxAttempts    int           `env:"MAX_ATTEMPTS"    envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"1s"`
	MaxBackoff     time.Duration `env:"MAX_BACKOFF"     envDefault:"10s"`
}

// LoadConfig reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	envFile := GetEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("file", envFile).Warn("Failed to load env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	return &cfg, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// APIKey returns the credential for the configured summary provider.
func (c *Config) APIKey() string {
	if c.Summary.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GoogleAPIKey
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.Transcript.Timeout <= 0 {
		return errors.New("transcript timeout must be greater than 0")
	}
	if len(cfg.Transcript.Languages) == 0 {
		return errors.New("at least one transcript language is required")
	}
	if cfg.Summary.Provider != ProviderGemini && cfg.Summary.Provider != ProviderOpenAI {
		return errors.Errorf("unknown summary provider %q", cfg.Summary.Provider)
	}
	if cfg.Summary.Model == "" {
		return errors.New("summary model is required")
	}
	if cfg.Summary.Timeout <= 0 {
		return errors.New("summary timeout must be greater than 0")
	}
	if cfg.Summary.MaxInputChars <= 0 {
		return errors.New("summary max input chars must be greater than 0")
	}
	if cfg.Summary.Chunking && (cfg.Summary.ChunkChars <= 0 || cfg.Summary.ChunkChars > cfg.Summary.MaxInputChars) {
		return errors.New("summary chunk chars must be between 1 and max input chars")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry max attempts must be at least 1")
	}
	if cfg.Retry.InitialBackoff < 0 || cfg.Retry.MaxBackoff < cfg.Retry.InitialBackoff {
		return errors.New("retry backoff must satisfy 0 <= initial <= max")
	}
	if cfg.DBPath != "" && cfg.HistoryRetention <= 0 {
		return errors.New("history retention must be greater than 0")
	}
	return nil
}
