package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const envPrefix = "TICKETASSIST"

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty DatabaseURL selects the in-process stores.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Empty RedisURL selects the in-process event broker.
	RedisURL string `envconfig:"REDIS_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ticketassist-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Lifetime of presigned links to archived document originals.
	S3DownloadURLExpiry time.Duration `envconfig:"S3_DOWNLOAD_URL_EXPIRY" default:"15m"`

	OpenAIAPIKey         string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `envconfig:"OPENAI_BASE_URL"`
	OpenAIChatModel      string        `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	OpenAIEmbeddingModel string        `envconfig:"OPENAI_EMBEDDING_MODEL"`
	GenerationTimeout    time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`

	RetrievalTopK   int     `envconfig:"RETRIEVAL_TOP_K" default:"4"`
	SuggestMinScore float64 `envconfig:"SUGGEST_MIN_SCORE" default:"0"`
	ChunkWindow     int     `envconfig:"CHUNK_WINDOW" default:"1200"`
	ChunkOverlap    int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	MaxUploadMB     int64   `envconfig:"MAX_UPLOAD_MB" default:"20"`

	// Zero keeps every chunk of a document.
	MaxChunksPerDocument int `envconfig:"MAX_CHUNKS_PER_DOCUMENT" default:"0"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	GapMonitorInterval time.Duration `envconfig:"GAP_MONITOR_INTERVAL" default:"5m"`
	GapAlertRate       float64       `envconfig:"GAP_ALERT_RATE" default:"0.5"`
	GapAlertMinEvents  int           `envconfig:"GAP_ALERT_MIN_EVENTS" default:"10"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	return cfg
}

// Validate rejects settings that would make the server misbehave silently.
func (c *Config) Validate() error {
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be at least 1, got %d", c.RetrievalTopK)
	}
	if c.ChunkWindow < 1 {
		return fmt.Errorf("CHUNK_WINDOW must be positive, got %d", c.ChunkWindow)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWindow {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_WINDOW), got %d", c.ChunkOverlap)
	}
	if c.MaxChunksPerDocument < 0 {
		return fmt.Errorf("MAX_CHUNKS_PER_DOCUMENT must not be negative, got %d", c.MaxChunksPerDocument)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.GapMonitorInterval <= 0 {
		return fmt.Errorf("GAP_MONITOR_INTERVAL must be positive, got %s", c.GapMonitorInterval)
	}
	if c.GapAlertRate < 0 || c.GapAlertRate > 1 {
		return fmt.Errorf("GAP_ALERT_RATE must be within [0, 1], got %v", c.GapAlertRate)
	}
	return nil
}

func (c *Config) HasDatabase() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func (c *Config) HasRedis() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
