/*
Package configs is responsible for loading and parsing the application's configuration settings.

The API server and the mentorctl client both read operating system environment variables.
A .env file in the working directory, when present, is loaded first and never overrides
variables that are already set.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvDevelopment is the default ENVIRONMENT value.
	EnvDevelopment = "development"

	// DefaultPollInterval is the thread refresh period of the client.
	DefaultPollInterval = 30 * time.Second

	// MinPollInterval keeps misconfigured clients from hammering the server.
	MinPollInterval = time.Second
)

// AppConfig contains all configuration parameters required for the API server to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// WriteRateLimit is the sustained number of write requests per second allowed per IP,
	// with bursts up to WriteBurst.
	WriteRateLimit float64
	WriteBurst     int

	// S3 Storage Settings. An empty bucket disables attachments (development only).
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Database Settings. An empty DSN selects the in-memory store (development only).
	DatabaseDSN string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// AttachmentsEnabled reports whether S3 storage is configured.
func (c *AppConfig) AttachmentsEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads and parses the server configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	loadDotEnv()

	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = "mentorlink_insecure_development_secret"
	}

	rateStr := os.Getenv("WRITE_RATE_LIMIT")
	if rateStr == "" {
		rateStr = "2"
	}
	cfg.WriteRateLimit, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.WriteRateLimit <= 0 {
		return nil, fmt.Errorf("invalid WRITE_RATE_LIMIT environment variable: %q", rateStr)
	}

	cfg.WriteBurst, err = intEnv("WRITE_BURST", 10)
	if err != nil {
		return nil, err
	}
	if cfg.WriteBurst < 1 {
		return nil, fmt.Errorf("WRITE_BURST must be at least 1, got %d", cfg.WriteBurst)
	}

	// --- S3 Storage Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	if cfg.S3BucketName == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("S3_BUCKET_NAME environment variable is required for S3 storage connection")
	}
	if cfg.S3BucketName != "" {
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET_NAME is set")
		}
	}

	// --- Database Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	if cfg.DatabaseDSN == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

// ClientConfig configures the mentorctl client.
type ClientConfig struct {
	// BaseURL is the API server root, e.g. http://localhost:8080.
	BaseURL string

	// Token is the bearer credential issued by the identity service.
	Token string

	PollInterval time.Duration
}

// LoadClientConfig reads the client configuration from environment variables. The token
// may still be empty; call Validate once command-line overrides are applied.
func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{
		BaseURL:      strings.TrimRight(os.Getenv("MENTORLINK_URL"), "/"),
		Token:        strings.TrimSpace(os.Getenv("MENTORLINK_TOKEN")),
		PollInterval: DefaultPollInterval,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}

	if s := os.Getenv("MENTORLINK_POLL_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid MENTORLINK_POLL_INTERVAL environment variable: %w", err)
		}
		cfg.PollInterval = d
	}

	if err := cfg.validateInterval(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a client configuration after flags have been applied. Every command
// except login needs a token.
func (c *ClientConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("a bearer token is required (set MENTORLINK_TOKEN or pass --token)")
	}
	return c.validateInterval()
}

func (c *ClientConfig) validateInterval() error {
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval %s is below the minimum of %s", c.PollInterval, MinPollInterval)
	}
	return nil
}

func loadDotEnv() {
	_ = godotenv.Load(".env")
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
