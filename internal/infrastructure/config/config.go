package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "COMET_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Robot     RobotConfig     `yaml:"robot" toml:"robot"`
	OCR       OCRConfig       `yaml:"ocr" toml:"ocr"`
	AI        AIConfig        `yaml:"ai" toml:"ai"`
	Bridge    BridgeConfig    `yaml:"bridge" toml:"bridge"`
	Shell     ShellConfig     `yaml:"shell" toml:"shell"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// StorageConfig locates the permission file and audit log.
type StorageConfig struct {
	Dir string `envconfig:"STORAGE_DIR" yaml:"dir" toml:"dir"`
}

// RobotConfig controls desktop input synthesis.
type RobotConfig struct {
	Enabled    bool `envconfig:"ROBOT_ENABLED" yaml:"enabled" toml:"enabled"`
	MinDelayMS int  `envconfig:"ROBOT_MIN_DELAY_MS" yaml:"min_delay_ms" toml:"min_delay_ms"`
	// ConfirmMode is one of "queue" (answered over HTTP/WS) or "terminal".
	ConfirmMode string `envconfig:"ROBOT_CONFIRM_MODE" yaml:"confirm_mode" toml:"confirm_mode"`
}

// OCRConfig controls capture and recognition.
type OCRConfig struct {
	Language        string  `envconfig:"OCR_LANGUAGE" yaml:"language" toml:"language"`
	MinConfidence   float64 `envconfig:"OCR_MIN_CONFIDENCE" yaml:"min_confidence" toml:"min_confidence"`
	PreprocessWidth int     `envconfig:"OCR_PREPROCESS_WIDTH" yaml:"preprocess_width" toml:"preprocess_width"`
	MaxCapture      int     `envconfig:"OCR_MAX_CAPTURE" yaml:"max_capture" toml:"max_capture"`
	Preprocess      bool    `envconfig:"OCR_PREPROCESS" yaml:"preprocess" toml:"preprocess"`
	TesseractPath   string  `envconfig:"OCR_TESSERACT_PATH" yaml:"tesseract_path" toml:"tesseract_path"`
}

// AIConfig holds model selection and provider credentials.
type AIConfig struct {
	DefaultModel  string `envconfig:"AI_DEFAULT_MODEL" yaml:"default_model" toml:"default_model"`
	ResolverModel string `envconfig:"AI_RESOLVER_MODEL" yaml:"resolver_model" toml:"resolver_model"`
	DescribeModel string `envconfig:"AI_DESCRIBE_MODEL" yaml:"describe_model" toml:"describe_model"`
	VisionModel   string `envconfig:"AI_VISION_MODEL" yaml:"vision_model" toml:"vision_model"`
	TimeoutSec    int    `envconfig:"AI_TIMEOUT_SEC" yaml:"timeout_sec" toml:"timeout_sec"`
	GroqKey       string `envconfig:"GROQ_API_KEY" yaml:"groq_api_key" toml:"groq_api_key"`
	OpenAIKey     string `envconfig:"OPENAI_API_KEY" yaml:"openai_api_key" toml:"openai_api_key"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY" yaml:"anthropic_api_key" toml:"anthropic_api_key"`
	GeminiKey     string `envconfig:"GEMINI_API_KEY" yaml:"gemini_api_key" toml:"gemini_api_key"`
}

// BridgeConfig holds companion bridge configuration.
type BridgeConfig struct {
	Enabled bool   `envconfig:"BRIDGE_ENABLED" yaml:"enabled" toml:"enabled"`
	Token   string `envconfig:"BRIDGE_TOKEN" yaml:"token" toml:"token"`
}

// ShellConfig controls the SHELL_COMMAND runner.
type ShellConfig struct {
	Enabled    bool   `envconfig:"SHELL_ENABLED" yaml:"enabled" toml:"enabled"`
	Path       string `envconfig:"SHELL_PATH" yaml:"path" toml:"path"`
	TimeoutSec int    `envconfig:"SHELL_TIMEOUT_SEC" yaml:"timeout_sec" toml:"timeout_sec"`
}

// Load builds configuration from defaults, then the optional file named by
// COMET_CONFIG, then environment variables. Later layers win.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML file on top of the defaults without
// consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse toml config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file type: %s", filepath.Ext(path))
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Dir: filepath.Join(os.TempDir(), "comet-pilot"),
		},
		Robot: RobotConfig{
			Enabled:     true,
			MinDelayMS:  300,
			ConfirmMode: "queue",
		},
		OCR: OCRConfig{
			Language:        "eng",
			MinConfidence:   60,
			PreprocessWidth: 3840,
			MaxCapture:      4096,
			Preprocess:      true,
			TesseractPath:   "tesseract",
		},
		AI: AIConfig{
			DefaultModel:  "llama-3.3-70b-versatile",
			ResolverModel: "llama-3.1-8b-instant",
			DescribeModel: "gemini-2.5-flash",
			VisionModel:   "claude-sonnet-4-5",
			TimeoutSec:    60,
		},
		Bridge: BridgeConfig{
			Enabled: true,
		},
		Shell: ShellConfig{
			Enabled:    true,
			Path:       "/bin/sh",
			TimeoutSec: 30,
		},
	}
}
