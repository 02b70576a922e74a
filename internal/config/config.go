package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Data sources for POST /import.
const (
	SourceNone   = "none"
	SourceMemory = "memory"
	SourceSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port            string        `envconfig:"PORT" default:"5000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	MaxUploadMB     int64         `envconfig:"MAX_UPLOAD_MB" default:"32"`
	RateLimitPerMin int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// LLM suggestions
	GPTAPIKey  string        `envconfig:"GPT_API_KEY"`
	GPTAPIURL  string        `envconfig:"GPT_API_URL" default:"https://api.openai.com/v1"`
	GPTModel   string        `envconfig:"GPT_MODEL" default:"gpt-4"`
	GPTTimeout time.Duration `envconfig:"GPT_TIMEOUT" default:"60s"`

	// Ingestion
	DecodeConcurrency int `envconfig:"DECODE_CONCURRENCY" default:"4"`

	// Sessions
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	SessionMax int           `envconfig:"SESSION_MAX" default:"100"`

	// Import source
	DataSource string `envconfig:"DATA_SOURCE" default:"none"`
	SeedDir    string `envconfig:"SEED_DIR" default:"./data"`

	// Google Sheets
	GoogleSpreadsheetID      string `envconfig:"GOOGLE_SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"salone"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"analysis_completed"`

	// Worker ledger of analysed batches
	ReportPath string `envconfig:"REPORT_PATH" default:"./data/report/analisi.xlsx"`
}

// LoadEnvFile loads .env for local development. A missing file is not an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

// MaxUploadBytes is the multipart body limit.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload %d MB: must be between 1 and 1024", c.MaxUploadMB))
	}
	if c.RateLimitPerMin < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMin))
	}
	if c.DecodeConcurrency < 1 || c.DecodeConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid decode concurrency %d: must be between 1 and 64", c.DecodeConcurrency))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session ttl %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}

	if c.GPTAPIURL != "" {
		if u, err := url.Parse(c.GPTAPIURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid GPT API URL '%s': %v", c.GPTAPIURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid GPT API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}
	if c.GPTTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid GPT timeout %v: must be positive", c.GPTTimeout))
	}

	validSources := []string{SourceNone, SourceMemory, SourceSheets}
	isValidSource := false
	for _, s := range validSources {
		if c.DataSource == s {
			isValidSource = true
			break
		}
	}
	if !isValidSource {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	if c.DataSource == SourceMemory {
		if c.SeedDir == "" {
			errors = append(errors, "SEED_DIR cannot be empty when using memory data source")
		} else if info, err := os.Stat(c.SeedDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("seed directory does not exist: %s", c.SeedDir))
		}
	}

	if c.DataSource == SourceSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets data source")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the report worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required by the worker")
	}
	if !strings.EqualFold(filepath.Ext(c.ReportPath), ".xlsx") {
		errors = append(errors, fmt.Sprintf("invalid report path '%s': must end in .xlsx", c.ReportPath))
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
