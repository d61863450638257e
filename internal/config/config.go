// Package config provides configuration for the kanban service.
//
// Values are resolved from built-in defaults, then an optional YAML file named
// by KANBAN_CONFIG, then the process environment. A .env file is loaded into
// the environment first and never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the kanban service configuration.
type Config struct {
	Env string `yaml:"env"`

	// Server settings
	Port            int           `yaml:"port"`
	APIBaseURL      string        `yaml:"api_base_url"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Ticket docs are looked up under <root>/docs for each root.
	WorkspaceRoot string `yaml:"workspace_root"`
	AppRoot       string `yaml:"app_root"`

	// Empty means the built-in pickup policy.
	PickupPolicyPath string `yaml:"pickup_policy_path"`

	Gateway GatewayConfig `yaml:"gateway"`
	WS      WSConfig      `yaml:"ws"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// GatewayConfig holds agent gateway settings.
type GatewayConfig struct {
	URL             string        `yaml:"url"`
	Token           string        `yaml:"token"`
	AgentsTimeout   time.Duration `yaml:"agents_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
	SpawnTimeout    time.Duration `yaml:"spawn_timeout"`
	SendTimeout     time.Duration `yaml:"send_timeout"`
	SendWaitSeconds int           `yaml:"send_wait_seconds"`
	AgentCacheTTL   time.Duration `yaml:"agent_cache_ttl"`
}

// WSConfig holds realtime channel settings.
type WSConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		Env: "development",
		CORSOrigins: []string{
			"http://localhost:8080", "http://127.0.0.1:8080",
			"http://localhost:3000", "http://127.0.0.1:3000",
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:4173", "http://127.0.0.1:4173",
		},
		ShutdownTimeout: 10 * time.Second,
		DatabaseURL:     filepath.Join("data", "kanban.db"),
		WorkspaceRoot:   cwd,
		AppRoot:         cwd,
		Gateway: GatewayConfig{
			AgentsTimeout:   12 * time.Second,
			HealthTimeout:   10 * time.Second,
			SpawnTimeout:    75 * time.Second,
			SendTimeout:     30 * time.Second,
			SendWaitSeconds: 90,
			AgentCacheTTL:   time.Hour,
		},
		WS: WSConfig{
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxMessageSize: 65536,
			SendBuffer:     256,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the .env file, the optional YAML file and
// environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("KANBAN_DOTENV", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("KANBAN_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.finalize()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid PORT value: %q", raw)
		}
		c.Port = port
	}
	c.APIBaseURL = getEnv("API_BASE_URL", getEnv("VITE_API_BASE_URL", c.APIBaseURL))
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
	c.ShutdownTimeout = getEnvDurationMs("SHUTDOWN_TIMEOUT_MS", c.ShutdownTimeout)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.WorkspaceRoot = getEnv("WORKSPACE_ROOT", getEnv("WORKSPACE_BROWSER_ROOT", c.WorkspaceRoot))
	c.AppRoot = getEnv("KANBAN_APP_ROOT", c.AppRoot)
	c.PickupPolicyPath = getEnv("PICKUP_POLICY_PATH", c.PickupPolicyPath)

	c.Gateway.URL = getEnv("OPENCLAW_GATEWAY_URL", c.Gateway.URL)
	c.Gateway.Token = getEnv("OPENCLAW_TOKEN", c.Gateway.Token)
	c.Gateway.AgentsTimeout = getEnvDurationMs("GATEWAY_AGENTS_TIMEOUT_MS", c.Gateway.AgentsTimeout)
	c.Gateway.HealthTimeout = getEnvDurationMs("GATEWAY_HEALTH_TIMEOUT_MS", c.Gateway.HealthTimeout)
	c.Gateway.SpawnTimeout = getEnvDurationMs("GATEWAY_SPAWN_TIMEOUT_MS", c.Gateway.SpawnTimeout)
	c.Gateway.SendTimeout = getEnvDurationMs("GATEWAY_SEND_TIMEOUT_MS", c.Gateway.SendTimeout)
	c.Gateway.SendWaitSeconds = getEnvInt("GATEWAY_SEND_WAIT_SECONDS", c.Gateway.SendWaitSeconds)
	c.Gateway.AgentCacheTTL = getEnvDurationMs("AGENT_CACHE_TTL_MS", c.Gateway.AgentCacheTTL)

	c.WS.PingInterval = getEnvDurationMs("WS_PING_INTERVAL_MS", c.WS.PingInterval)
	c.WS.WriteTimeout = getEnvDurationMs("WS_WRITE_TIMEOUT_MS", c.WS.WriteTimeout)
	c.WS.ReadTimeout = getEnvDurationMs("WS_READ_TIMEOUT_MS", c.WS.ReadTimeout)
	c.WS.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(c.WS.MaxMessageSize)))
	c.WS.SendBuffer = getEnvInt("WS_SEND_BUFFER", c.WS.SendBuffer)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	return nil
}

// finalize derives the port and API base URL from each other.
func (c *Config) finalize() {
	c.Gateway.URL = strings.TrimRight(strings.TrimSpace(c.Gateway.URL), "/")
	c.Gateway.Token = strings.TrimSpace(c.Gateway.Token)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")

	if c.Port == 0 {
		c.Port = portFromURL(c.APIBaseURL, 8080)
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func portFromURL(raw string, defaultPort int) int {
	if raw == "" {
		return defaultPort
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Port() == "" {
		return defaultPort
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		return defaultPort
	}
	return port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
