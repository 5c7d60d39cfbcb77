// Package config holds the explicit configuration value object for one
// extractor run. Precedence, lowest to highest: built-in defaults, an
// optional YAML file, then environment variables. The value is built
// once at process start and passed in; no global configuration state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Selection.
	SenderName string `yaml:"sender_name"`
	MessageID  string `yaml:"message_id"`
	TargetDate string `yaml:"target_date"` // YYYYMMDD
	MaxResults int    `yaml:"max_results"`
	StrictDate bool   `yaml:"strict_date_match"`

	// Output locations.
	OutputDir string `yaml:"output_dir"`
	TempDir   string `yaml:"temp_dir"`

	// Gemini.
	GeminiAPIKey  string  `yaml:"gemini_api_key"`
	GeminiModel   string  `yaml:"gemini_model"`
	GeminiBaseURL string  `yaml:"gemini_base_url"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps"`

	// Rendering.
	DeviceScaleFactor float64 `yaml:"device_scale_factor"`
	FullPageCapture   bool    `yaml:"full_page_capture"`

	// Collaborator client behavior.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// OAuth files.
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	// Logging.
	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		MaxResults:        10,
		OutputDir:         "output",
		TempDir:           "temp",
		GeminiModel:       "gemini-2.5-flash",
		DeviceScaleFactor: 2,
		FullPageCapture:   true,
		RequestTimeout:    60 * time.Second,
		CredentialsFile:   "credentials.json",
		TokenFile:         "token.json",
		LogLevel:          "info",
	}
}

// Load builds the run configuration: defaults, then the YAML file at
// path (if non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return cfg.withEnv()
}

func (c Config) withEnv() (Config, error) {
	c.SenderName = envString("SENDER_NAME", c.SenderName)
	c.MessageID = envString("MESSAGE_ID", c.MessageID)
	c.TargetDate = envString("TARGET_DATE", c.TargetDate)
	c.OutputDir = envString("OUTPUT_DIR", c.OutputDir)
	c.TempDir = envString("TEMP_DIR", c.TempDir)
	c.GeminiAPIKey = envString("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = envString("GEMINI_MODEL", c.GeminiModel)
	c.GeminiBaseURL = envString("GEMINI_BASE_URL", c.GeminiBaseURL)
	c.CredentialsFile = envString("CREDENTIALS_FILE", c.CredentialsFile)
	c.TokenFile = envString("TOKEN_FILE", c.TokenFile)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)

	var err error
	if c.MaxResults, err = envInt("MAX_RESULTS", c.MaxResults); err != nil {
		return Config{}, err
	}
	if c.StrictDate, err = envBool("STRICT_DATE_MATCH", c.StrictDate); err != nil {
		return Config{}, err
	}
	if c.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", c.RateLimitRPS); err != nil {
		return Config{}, err
	}
	if c.DeviceScaleFactor, err = envFloat("DEVICE_SCALE_FACTOR", c.DeviceScaleFactor); err != nil {
		return Config{}, err
	}
	if c.FullPageCapture, err = envBool("FULL_PAGE_CAPTURE", c.FullPageCapture); err != nil {
		return Config{}, err
	}
	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations that cannot drive a run.
func (c Config) Validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("MAX_RESULTS must be >= 1, got %d", c.MaxResults)
	}
	if c.SenderName == "" && c.MessageID == "" {
		return fmt.Errorf("SENDER_NAME is required unless MESSAGE_ID is set")
	}
	if c.TargetDate != "" && len(c.TargetDate) != 8 {
		return fmt.Errorf("TARGET_DATE must be YYYYMMDD, got %q", c.TargetDate)
	}
	if c.DeviceScaleFactor <= 0 {
		return fmt.Errorf("DEVICE_SCALE_FACTOR must be > 0, got %g", c.DeviceScaleFactor)
	}
	if c.OutputDir == "" || c.TempDir == "" {
		return fmt.Errorf("OUTPUT_DIR and TEMP_DIR must be set")
	}
	return nil
}

func envString(varName, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		return v
	}
	return fallback
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
