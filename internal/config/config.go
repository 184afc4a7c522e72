// Package config handles Warden configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./warden.yaml, ~/.config/warden/config.yaml, /etc/warden/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"warden.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "warden", "config.yaml"))
	}

	paths = append(paths, "/etc/warden/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Warden configuration.
type Config struct {
	Listen      ListenConfig           `yaml:"listen"`
	Backends    BackendsConfig         `yaml:"backends"`
	Agent       AgentConfig            `yaml:"agent"`
	Diagnostics DiagnosticsConfig      `yaml:"diagnostics"`
	Caches      map[string]CacheConfig `yaml:"caches"`
	Tools       ToolsConfig            `yaml:"tools"`
	RunLog      RunLogConfig           `yaml:"runlog"`
	LogLevel    string                 `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// BackendsConfig holds the two model backends compared in A/B fashion.
type BackendsConfig struct {
	Default string        `yaml:"default"` // "a" or "b"
	A       BackendConfig `yaml:"a"`
	B       BackendConfig `yaml:"b"`
}

// BackendConfig defines a single model backend. Backends are created
// once at startup and read-only thereafter.
type BackendConfig struct {
	Name        string  `yaml:"name"`     // Display name, defaults to the model name
	BaseURL     string  `yaml:"base_url"` // OpenAI-compatible endpoint (e.g., http://ollama-model-a:11434/v1)
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig bounds the reason-act-observe loop.
type AgentConfig struct {
	MaxIterations  int `yaml:"max_iterations"`  // Thinking steps per request (default 5)
	TimeoutSeconds int `yaml:"timeout_seconds"` // Wall-clock ceiling per request (default 90)
}

// Timeout returns the loop wall-clock ceiling as a duration.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DiagnosticsConfig defines the external diagnostics server connection.
type DiagnosticsConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Per-call HTTP timeout (default 60)
}

// CacheConfig defines a single named tool-result cache.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ToolsConfig controls the tool surface exposed to the agent.
type ToolsConfig struct {
	// Extended enables service_logs, service_config_update, and
	// service_diagnostics in addition to the core three tools.
	Extended bool `yaml:"extended"`
}

// RunLogConfig defines the run history database.
type RunLogConfig struct {
	Path string `yaml:"path"` // SQLite file path; empty disables the run log
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks startup invariants. A broken backend definition is a
// configuration error and must be fatal here, never a request-time
// condition.
func (c *Config) Validate() error {
	if c.Backends.Default != "a" && c.Backends.Default != "b" {
		return fmt.Errorf("backends.default must be \"a\" or \"b\", got %q", c.Backends.Default)
	}
	for id, b := range map[string]BackendConfig{"a": c.Backends.A, "b": c.Backends.B} {
		if b.BaseURL == "" {
			return fmt.Errorf("backend %s: base_url is required", id)
		}
		if b.Model == "" {
			return fmt.Errorf("backend %s: model is required", id)
		}
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.TimeoutSeconds <= 0 {
		return fmt.Errorf("agent.timeout_seconds must be positive, got %d", c.Agent.TimeoutSeconds)
	}
	for name, cc := range c.Caches {
		if cc.TTLSeconds <= 0 {
			return fmt.Errorf("cache %s: ttl_seconds must be positive, got %d", name, cc.TTLSeconds)
		}
	}
	return nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8001},
		Backends: BackendsConfig{
			Default: "a",
			A: BackendConfig{
				Name:        "mistral:7b-instruct",
				BaseURL:     "http://ollama-model-a:11434/v1",
				Model:       "mistral:7b-instruct",
				Temperature: 0.1,
				MaxTokens:   2048,
			},
			B: BackendConfig{
				Name:        "ministral-3:8b-instruct",
				BaseURL:     "http://ollama-model-b:11434/v1",
				Model:       "ministral-3:8b-instruct",
				Temperature: 0.1,
				MaxTokens:   2048,
			},
		},
		Agent: AgentConfig{
			MaxIterations:  5,
			TimeoutSeconds: 90,
		},
		Diagnostics: DiagnosticsConfig{
			BaseURL:        "http://mcp-server:8002",
			TimeoutSeconds: 60,
		},
		Caches: map[string]CacheConfig{
			"system_health":   {TTLSeconds: 60},
			"database_status": {TTLSeconds: 90},
		},
		RunLog: RunLogConfig{Path: "warden-runs.db"},
	}
}
