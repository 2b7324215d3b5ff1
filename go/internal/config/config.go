package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in Config.Transport.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Config holds everything the capture client needs at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport string          `yaml:"transport"`
	NATS      NATSConfig      `yaml:"nats"`
	Render    RenderConfig    `yaml:"render"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	InboxSize int             `yaml:"inbox_size"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig locates the world server.
type ServerConfig struct {
	BaseURL      string `yaml:"base_url"`
	WebSocketURL string `yaml:"websocket_url"`
	SessionToken string `yaml:"session_token"`
}

// NATSConfig is used when Transport is "nats".
type NATSConfig struct {
	URL           string `yaml:"url"`
	EventSubject  string `yaml:"event_subject"`
	ClientSubject string `yaml:"client_subject"`
}

// RenderConfig holds the fixed map rendering constants.
type RenderConfig struct {
	MaxLatitudeDelta      float64 `yaml:"max_latitude_delta"`
	MaxLongitudeDelta     float64 `yaml:"max_longitude_delta"`
	InitialLatitudeDelta  float64 `yaml:"initial_latitude_delta"`
	InitialLongitudeDelta float64 `yaml:"initial_longitude_delta"`
}

// ReconnectConfig bounds the backoff between channel attempts.
type ReconnectConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// BridgeConfig configures the local HTTP bridge.
type BridgeConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:      "http://localhost:3000",
			WebSocketURL: "ws://localhost:3000/ws",
		},
		Transport: TransportWebSocket,
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			EventSubject:  "turf.events",
			ClientSubject: "turf.client",
		},
		Render: RenderConfig{
			MaxLatitudeDelta:      0.7,
			MaxLongitudeDelta:     0.7,
			InitialLatitudeDelta:  0.0922,
			InitialLongitudeDelta: 0.0421,
		},
		Reconnect: ReconnectConfig{
			InitialBackoff: time.Second,
			MaxBackoff:     60 * time.Second,
		},
		Bridge: BridgeConfig{
			Addr: "127.0.0.1:8090",
		},
		InboxSize: 256,
		LogLevel:  "info",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and TURF_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.BaseURL = getEnv("TURF_SERVER_URL", c.Server.BaseURL)
	c.Server.WebSocketURL = getEnv("TURF_WS_URL", c.Server.WebSocketURL)
	c.Server.SessionToken = getEnv("TURF_SESSION_TOKEN", c.Server.SessionToken)
	c.Transport = getEnv("TURF_TRANSPORT", c.Transport)
	c.NATS.URL = getEnv("TURF_NATS_URL", c.NATS.URL)
	c.Bridge.Addr = getEnv("TURF_BRIDGE_ADDR", c.Bridge.Addr)
	c.LogLevel = getEnv("TURF_LOG_LEVEL", c.LogLevel)
	c.InboxSize = getEnvAsInt("TURF_INBOX_SIZE", c.InboxSize)
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportWebSocket:
		if c.Server.WebSocketURL == "" {
			errs = append(errs, errors.New("server.websocket_url is required for the websocket transport"))
		}
	case TransportNATS:
		if c.NATS.URL == "" || c.NATS.EventSubject == "" || c.NATS.ClientSubject == "" {
			errs = append(errs, errors.New("nats url and subjects are required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}

	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	}
	if c.Render.MaxLatitudeDelta <= 0 || c.Render.MaxLongitudeDelta <= 0 {
		errs = append(errs, errors.New("render thresholds must be positive"))
	}
	if c.Render.InitialLatitudeDelta <= 0 || c.Render.InitialLongitudeDelta <= 0 {
		errs = append(errs, errors.New("initial viewport spans must be positive"))
	}
	if c.Reconnect.InitialBackoff <= 0 || c.Reconnect.MaxBackoff < c.Reconnect.InitialBackoff {
		errs = append(errs, errors.New("reconnect backoff must be positive with max >= initial"))
	}
	if c.InboxSize <= 0 {
		errs = append(errs, errors.New("inbox_size must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
