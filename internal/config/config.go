// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults, merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Search    SearchConfig    `mapstructure:"search"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Render    RenderConfig    `mapstructure:"render"`
	Editor    EditorConfig    `mapstructure:"editor"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxBodyMB bounds JSON request bodies, which carry base64 photos.
	MaxBodyMB int `mapstructure:"max_body_mb"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	ExportDir    string `mapstructure:"export_dir"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SearchConfig configures remote image search.
type SearchConfig struct {
	// TourURLTemplate builds the page scraped for a numeric tour ID; %s is the ID.
	TourURLTemplate string `mapstructure:"tour_url_template"`
	// AllowedHosts filters scraped image URLs by substring.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
	MaxResults   int      `mapstructure:"max_results"`
	// CacheTTL is how long a successful search is served from the database.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["anthropic", "openai"]
	ProviderOrder []string        `mapstructure:"provider_order"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic"`
	OpenAI        OpenAIConfig    `mapstructure:"openai"`
	RatePerMinute int             `mapstructure:"rate_per_minute"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// RenderConfig configures fonts and the default logo.
type RenderConfig struct {
	RegularFont     string `mapstructure:"regular_font"`
	BoldFont        string `mapstructure:"bold_font"`
	DefaultLogoPath string `mapstructure:"default_logo_path"`
	// Timeout bounds one render, decodes included.
	Timeout time.Duration `mapstructure:"timeout"`
}

// EditorConfig configures interactive editor sessions.
type EditorConfig struct {
	FrameIntervalMs int           `mapstructure:"frame_interval_ms"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	SessionIdle     time.Duration `mapstructure:"session_idle"`
}

// FrameInterval returns the pointer-move render coalescing interval.
func (e EditorConfig) FrameInterval() time.Duration {
	return time.Duration(e.FrameIntervalMs) * time.Millisecond
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value; callers must check them.
// This pattern replaces try/catch: if err != nil { handle it }.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults: these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_mb", 25)
	v.SetDefault("storage.database_path", "./storage/promo-composer.db")
	v.SetDefault("storage.export_dir", "./storage/exports")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("search.tour_url_template", "https://www.headout.com/tour/%s")
	v.SetDefault("search.allowed_hosts", []string{"cloudfront.net", "headout-media"})
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.cache_ttl", 24*time.Hour)
	v.SetDefault("llm.provider_order", []string{"anthropic", "openai"})
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.rate_per_minute", 10)
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("editor.frame_interval_ms", 16)
	v.SetDefault("editor.max_sessions", 100)
	v.SetDefault("editor.session_idle", 30*time.Minute)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// PROMO_ prefix + nested keys: PROMO_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("PROMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into our Config struct. Durations like "30s" decode through
	// viper's default mapstructure hooks.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
// This is a method on ServerConfig. Go attaches methods to types via receiver syntax.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
