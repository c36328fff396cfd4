// Package config loads application configuration from a YAML file,
// environment variables, and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Fetch     Fetch     `mapstructure:"fetch"`
	Extract   Extract   `mapstructure:"extract"`
	Filter    Filter    `mapstructure:"filter"`
	LLM       LLM       `mapstructure:"llm"`
	Summarize Summarize `mapstructure:"summarize"`
	Email     Email     `mapstructure:"email"`
	Schedule  Schedule  `mapstructure:"schedule"`
	Logging   Logging   `mapstructure:"logging"`
}

// App holds general application configuration.
type App struct {
	DataDir string `mapstructure:"data_dir"` // Directory holding the sqlite database
}

// Fetch holds source fetching configuration.
type Fetch struct {
	Timeout   string `mapstructure:"timeout"`    // Per-source fetch timeout
	Workers   int    `mapstructure:"workers"`    // Concurrent source fetches
	UserAgent string `mapstructure:"user_agent"` // Sent on all outbound requests
}

// Extract holds full-text extraction configuration.
type Extract struct {
	Timeout string `mapstructure:"timeout"` // Per-candidate extraction timeout
	Workers int    `mapstructure:"workers"` // Concurrent extractions
}

// Filter holds keyword-blocklist configuration.
type Filter struct {
	Scope string `mapstructure:"scope"` // "title_preview" or "full_text"
}

// LLM holds inference service configuration.
type LLM struct {
	Provider string       `mapstructure:"provider"` // "ollama" (default) or "gemini"
	Timeout  string       `mapstructure:"timeout"`  // Per-request timeout
	Ollama   OllamaConfig `mapstructure:"ollama"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

// OllamaConfig holds local Ollama configuration.
type OllamaConfig struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Summarize holds summarization stage configuration.
type Summarize struct {
	Workers        int `mapstructure:"workers"`         // Concurrent inference calls
	MaxInputChars  int `mapstructure:"max_input_chars"` // Body truncation before prompting
	FallbackChars  int `mapstructure:"fallback_chars"`  // Budget for deterministic fallback text
	MaxOutputWords int `mapstructure:"max_output_words"`
}

// Email holds digest delivery configuration.
type Email struct {
	Recipient string `mapstructure:"recipient"` // Empty disables sending
	From      string `mapstructure:"from"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	SMTPUser  string `mapstructure:"smtp_user"`
	SMTPPass  string `mapstructure:"smtp_pass"`
	SendEmpty bool   `mapstructure:"send_empty"` // Send even when the digest has no entries
}

// Schedule holds the cron trigger configuration for serve mode.
type Schedule struct {
	Cron     string `mapstructure:"cron"` // Standard 5-field cron expression
	Timezone string `mapstructure:"timezone"`
}

// Logging holds logging configuration.
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load reads configuration from .env, the config file, and PHEME_*
// environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".pheme")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("PHEME")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the loaded configuration, loading defaults if Load was
// never called.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		return cfg
	}
	return globalConfig
}

// Reset clears the cached configuration (used by tests).
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.data_dir", ".pheme")

	viper.SetDefault("fetch.timeout", "30s")
	viper.SetDefault("fetch.workers", 4)
	viper.SetDefault("fetch.user_agent", "Pheme/1.0 (news digest)")

	viper.SetDefault("extract.timeout", "15s")
	viper.SetDefault("extract.workers", 4)

	viper.SetDefault("filter.scope", "title_preview")

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.ollama.host", "http://localhost:11434")
	viper.SetDefault("llm.ollama.model", "qwen2.5:1.5b-instruct")
	viper.SetDefault("llm.gemini.model", "gemini-1.5-flash")

	viper.SetDefault("summarize.workers", 2)
	viper.SetDefault("summarize.max_input_chars", 6000)
	viper.SetDefault("summarize.fallback_chars", 400)
	viper.SetDefault("summarize.max_output_words", 120)

	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.send_empty", false)

	viper.SetDefault("schedule.cron", "0 6 * * *")
	viper.SetDefault("schedule.timezone", "UTC")

	viper.SetDefault("logging.level", "info")
}

// Duration parses a config duration string, falling back to def on
// empty or malformed values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
