// ABOUTME: Configuration loading and parsing for parrot-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete parrot-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Recall   RecallConfig   `yaml:"recall"`
	Memory   MemoryConfig   `yaml:"memory"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds identity resolution configuration
type AuthConfig struct {
	// JWTSecret signs/verifies HS256 bearer tokens for authenticated users.
	// Optional: without it only explicit and anonymous identities resolve.
	JWTSecret string `yaml:"jwt_secret"`
	// AnonCookieName is the cookie carrying the fallback anonymous identity.
	AnonCookieName string `yaml:"anon_cookie_name"`
}

// OpenAIConfig holds the model configuration for the execution engine,
// the title summarizer, and the memory embedder.
type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	ReviewerModel string `yaml:"reviewer_model"`
	TitleModel    string `yaml:"title_model"`
	EmbedModel    string `yaml:"embed_model"`
}

// RecallConfig holds recall-cache backend configuration.
// With redis disabled the gateway uses the in-process single-slot cache.
type RecallConfig struct {
	RedisEnabled bool   `yaml:"redis_enabled"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisDB      int    `yaml:"redis_db"`
	RedisPrefix  string `yaml:"redis_prefix"`

	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// MemoryConfig holds memory personalization tuning
type MemoryConfig struct {
	// TopK bounds the semantic search result count
	TopK int `yaml:"top_k"`
	// ExcerptLen truncates each semantic hit to this many characters
	ExcerptLen int `yaml:"excerpt_len"`
}

// ToolsConfig holds external tool endpoint configuration
type ToolsConfig struct {
	// GotQuestionsEndpoint is the article search API the citations tool
	// queries. Empty disables the tool.
	GotQuestionsEndpoint string `yaml:"got_questions_endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields
func (c *Config) applyDefaults() {
	if c.Auth.AnonCookieName == "" {
		c.Auth.AnonCookieName = "parrot_anon_id"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.TitleModel == "" {
		c.OpenAI.TitleModel = c.OpenAI.Model
	}
	if c.OpenAI.EmbedModel == "" {
		c.OpenAI.EmbedModel = "text-embedding-3-small"
	}
	if c.Recall.RedisPrefix == "" {
		c.Recall.RedisPrefix = "parrot:recall:"
	}
	if c.Memory.TopK <= 0 {
		c.Memory.TopK = 3
	}
	if c.Memory.ExcerptLen <= 0 {
		c.Memory.ExcerptLen = 200
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Recall.RedisEnabled && c.Recall.RedisAddr == "" {
		return fmt.Errorf("recall.redis_addr is required when recall.redis_enabled is set")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Recall.TTLRaw != "" {
		cfg.Recall.TTL, err = time.ParseDuration(cfg.Recall.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing recall.ttl %q: %w", cfg.Recall.TTLRaw, err)
		}
	}

	return nil
}
