package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/llm"

	"gopkg.in/yaml.v3"
)

// DefaultComplianceRules is the standard operating procedure rule set applied
// by the compliance stage when none is configured.
const DefaultComplianceRules = "1. 30-day submission limit. 2. VAT Invoice for >2000 AED. 3. Police Report for accidents."

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: "release", "debug", "test"
	} `yaml:"server"`

	Logging struct {
		Development bool   `yaml:"development"`
		Level       string `yaml:"level"`
	} `yaml:"logging"`

	// Multiple providers configuration
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Legacy single provider config (fallback)
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		ModelName  string `yaml:"model_name"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"gemini"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`

	Database struct {
		Type           string `yaml:"type"`            // "sqlite" or "postgres"
		Path           string `yaml:"path"`            // SQLite file path
		URL            string `yaml:"url"`             // PostgreSQL URL
		MigrationsPath string `yaml:"migrations_path"` // postgres only
	} `yaml:"database"`

	Retrieval struct {
		Type       string        `yaml:"type"` // "http" or "memory"
		URL        string        `yaml:"url"`
		Timeout    time.Duration `yaml:"timeout"`
		CorpusPath string        `yaml:"corpus_path"` // seed file for the memory index
	} `yaml:"retrieval"`

	Pipeline struct {
		ComplianceRules string `yaml:"compliance_rules"`
	} `yaml:"pipeline"`

	Dispatcher struct {
		MaxConcurrent int64 `yaml:"max_concurrent"`
	} `yaml:"dispatcher"`

	Auth struct {
		JWTSecret         string        `yaml:"jwt_secret"`
		AdminUsername     string        `yaml:"admin_username"`
		AdminPasswordHash string        `yaml:"admin_password_hash"` // argon2id, see cmd/hashpw
		TokenTTL          time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Expand environment variables in secrets
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Database.URL = os.ExpandEnv(config.Database.URL)
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Auth.AdminPasswordHash = os.ExpandEnv(config.Auth.AdminPasswordHash)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash-exp"
	}
	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}
	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/evaluations.db"
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}

	if c.Retrieval.Type == "" {
		c.Retrieval.Type = "memory"
	}
	if c.Retrieval.Timeout == 0 {
		c.Retrieval.Timeout = 15 * time.Second
	}

	if c.Pipeline.ComplianceRules == "" {
		c.Pipeline.ComplianceRules = DefaultComplianceRules
	}

	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}

	switch c.Database.Type {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	switch c.Retrieval.Type {
	case "memory":
	case "http":
		if c.Retrieval.URL == "" {
			return fmt.Errorf("retrieval.url is required for http retrieval")
		}
	default:
		return fmt.Errorf("unsupported retrieval type %q", c.Retrieval.Type)
	}

	if c.Dispatcher.MaxConcurrent < 0 {
		return fmt.Errorf("dispatcher.max_concurrent must not be negative")
	}

	return nil
}
