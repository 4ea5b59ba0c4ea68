package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration.
type Config struct {
	Port             string   `envconfig:"PORT" default:"8080"`
	Env              string   `envconfig:"ENV" default:"dev"`
	LogLevel         string   `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty        bool     `envconfig:"LOG_PRETTY" default:"false"`
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:5173"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	EditorSessionTTL time.Duration `envconfig:"EDITOR_SESSION_TTL" default:"12h"`

	ObjectStoreType string `envconfig:"OBJECT_STORE" default:"local"`
	LocalStoreDir   string `envconfig:"LOCAL_STORE_DIR" default:"./data"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Prefix        string `envconfig:"S3_PREFIX" default:"exports/"`
	SSEKMSKeyID     string `envconfig:"SSE_KMS_KEY_ID"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`

	QueueBackend       string `envconfig:"QUEUE_BACKEND"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubTopic        string `envconfig:"PUBSUB_TOPIC" default:"generation-jobs"`
	PubSubSubscription string `envconfig:"PUBSUB_SUBSCRIPTION" default:"generation-jobs-worker"`
	WorkerConcurrency  int    `envconfig:"WORKER_CONCURRENCY" default:"4"`

	GenerationProvider string        `envconfig:"GENERATION_PROVIDER" default:"stub"`
	GenerationModel    string        `envconfig:"GENERATION_MODEL"`
	GenerationBaseURL  string        `envconfig:"GENERATION_BASE_URL"`
	GenerationAPIKey   string        `envconfig:"GENERATION_API_KEY"`
	GenerationTimeout  time.Duration `envconfig:"GENERATION_TIMEOUT" default:"3m"`
	SweepInterval      time.Duration `envconfig:"GENERATION_SWEEP_INTERVAL" default:"30s"`
	SourceFetchTimeout time.Duration `envconfig:"SOURCE_FETCH_TIMEOUT" default:"15s"`

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	SignupCredits int           `envconfig:"SIGNUP_CREDITS" default:"50"`

	PaymentProvider string `envconfig:"PAYMENT_PROVIDER" default:"dev"`
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	StripeCurrency  string `envconfig:"STRIPE_CURRENCY" default:"eur"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `envconfig:"UI_REDIRECT_URL"`

	SecretsProject string `envconfig:"SECRETS_GCP_PROJECT"`

	// GCPCredentialsFile overrides application default credentials for
	// Pub/Sub and Secret Manager.
	GCPCredentialsFile string `envconfig:"GCP_CREDENTIALS_FILE"`
}

// Load reads configuration from .env files (best effort) and the environment.
func Load() (Config, error) {
	// Missing files are expected outside local development.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("cmd/.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.QueueBackend = strings.ToLower(strings.TrimSpace(cfg.QueueBackend))
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(cfg.PaymentProvider))
	cfg.CORSAllowOrigins = trimAll(cfg.CORSAllowOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func (c Config) validate() error {
	switch c.QueueBackend {
	case "", "inline":
	case "sqs":
		if strings.TrimSpace(c.SQSQueueURL) == "" {
			return fmt.Errorf("QUEUE_BACKEND=sqs requires SQS_QUEUE_URL")
		}
	case "pubsub":
		if strings.TrimSpace(c.GCPProjectID) == "" {
			return fmt.Errorf("QUEUE_BACKEND=pubsub requires GCP_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}
	if c.SignupCredits < 0 {
		return fmt.Errorf("SIGNUP_CREDITS must not be negative")
	}
	if c.Env == "production" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
