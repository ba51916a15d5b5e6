package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"prompt-relay/core/adapter"
	"prompt-relay/core/security"

	"gopkg.in/yaml.v3"
)

// Config holds the entire application configuration
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Relay      RelayConfig               `yaml:"relay"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Log        LogConfig                 `yaml:"log"`
	FailureLog FailureLogConfig          `yaml:"failure_log"`
	Security   SecurityConfig            `yaml:"security"`

	// resolved at load time, never serialized
	credentials map[string]string
	warnings    []string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port              int `yaml:"port"`
	ReadHeaderTimeout int `yaml:"read_header_timeout"` // seconds
	ShutdownTimeout   int `yaml:"shutdown_timeout"`    // seconds
}

// RelayConfig selects the provider behind the default route
type RelayConfig struct {
	Provider string `yaml:"provider"`
}

// ProviderConfig holds configuration for a provider.
// CredentialEnv names the environment variable holding the credential;
// the name itself is never exposed in responses or logs.
type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	CredentialEnv string `yaml:"credential_env"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// FailureLogConfig holds failure log persistence configuration
type FailureLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	BufferSize    int    `yaml:"buffer_size"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"` // duration string like "5s"
	Retain        int    `yaml:"retain"`
}

// SecurityConfig holds the master key used to decrypt "enc:" credentials
type SecurityConfig struct {
	SecretKey string `yaml:"secret_key"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8000,
			ReadHeaderTimeout: 10,
			ShutdownTimeout:   30,
		},
		Relay: RelayConfig{
			Provider: adapter.ProviderOpenAI,
		},
		Providers: map[string]ProviderConfig{
			adapter.ProviderOpenAI:       {CredentialEnv: "OPENAI_API_KEY"},
			adapter.ProviderGemini:       {CredentialEnv: "GOOGLE_API_KEY"},
			adapter.ProviderGeminiHeader: {CredentialEnv: "GOOGLE_API_KEY"},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		FailureLog: FailureLogConfig{
			Enabled:       true,
			DBPath:        "relay.db",
			BufferSize:    1000,
			BatchSize:     100,
			FlushInterval: "5s",
			Retain:        1000,
		},
	}
}

// Load loads configuration from an optional YAML file and the process environment
func Load(configPath string) (*Config, error) {
	return LoadWithEnv(configPath, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup
func LoadWithEnv(configPath string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		fileCfg := Default()
		fileCfg.Providers = nil
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		// provider entries merge over the defaults instead of replacing the map
		for name, p := range fileCfg.Providers {
			base := cfg.Providers[name]
			if p.BaseURL != "" {
				base.BaseURL = p.BaseURL
			}
			if p.Model != "" {
				base.Model = p.Model
			}
			if p.CredentialEnv != "" {
				base.CredentialEnv = p.CredentialEnv
			}
			cfg.Providers[name] = base
		}
		fileCfg.Providers = cfg.Providers
		cfg = fileCfg
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.resolveCredentials(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := firstNonEmpty(getenv("RELAY_PORT"), getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("RELAY_PROVIDER"); v != "" {
		c.Relay.Provider = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("RELAY_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := getenv("RELAY_DB_PATH"); v != "" {
		c.FailureLog.DBPath = v
	}
	if v := getenv("RELAY_FAILURE_LOG"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RELAY_FAILURE_LOG %q: %w", v, err)
		}
		c.FailureLog.Enabled = enabled
	}
	if v := getenv("RELAY_SECRET_KEY"); v != "" {
		c.Security.SecretKey = v
	}
	return nil
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	for name := range c.Providers {
		if _, err := adapter.New(name, adapter.Options{}); err != nil {
			return fmt.Errorf("invalid providers entry: %w", err)
		}
	}
	if _, ok := c.Providers[c.Relay.Provider]; !ok {
		return fmt.Errorf("default provider %q is not configured", c.Relay.Provider)
	}
	if _, err := time.ParseDuration(c.FailureLog.FlushInterval); err != nil {
		return fmt.Errorf("invalid failure_log.flush_interval: %w", err)
	}
	return nil
}

// resolveCredentials reads each provider credential once, decrypting "enc:" values.
// A value that cannot be decrypted is treated as missing, so the relay reports
// the generic configuration error instead of failing startup.
func (c *Config) resolveCredentials(getenv func(string) string) error {
	sp, err := security.NewSecretProvider(c.Security.SecretKey)
	if err != nil {
		return fmt.Errorf("invalid security.secret_key: %w", err)
	}

	c.credentials = make(map[string]string, len(c.Providers))
	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		if p.CredentialEnv == "" {
			continue
		}
		value, err := security.Resolve(sp, getenv(p.CredentialEnv))
		if err != nil {
			c.warnings = append(c.warnings, fmt.Sprintf("credential for provider %s is unusable: %v", name, err))
			continue
		}
		c.credentials[name] = value
	}
	return nil
}

// Credential returns the resolved credential for a provider, empty when absent
func (c *Config) Credential(provider string) string {
	return c.credentials[provider]
}

// Warnings returns non-fatal problems found while loading
func (c *Config) Warnings() []string {
	return c.warnings
}

// ProviderNames returns configured provider names, sorted
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AdapterOptions returns the adapter overrides for a provider
func (c *Config) AdapterOptions(provider string) adapter.Options {
	p := c.Providers[provider]
	return adapter.Options{BaseURL: p.BaseURL, Model: p.Model}
}

// FlushInterval returns the parsed failure log flush interval
func (c *Config) FlushInterval() time.Duration {
	d, err := time.ParseDuration(c.FailureLog.FlushInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
