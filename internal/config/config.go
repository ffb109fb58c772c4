package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	GatewayURL     string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	RPCTimeout        time.Duration
	PollInterval      time.Duration
	FrameInterval     time.Duration
	BroadcastInterval time.Duration

	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	PrefsPath string

	AuthSecret  string
	AuthJWKSURL string
	SkipAuth    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		GatewayURL:     getEnv("GATEWAY_URL", "ws://localhost:9800/gateway"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PrefsPath:      getEnv("LAYOUT_PREFS_PATH", "layout_prefs.json"),
		AuthSecret:     getEnv("AUTH_SECRET", ""),
		AuthJWKSURL:    getEnv("AUTH_JWKS_URL", ""),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",
	}

	rpcTimeout, err := strconv.Atoi(getEnv("RPC_TIMEOUT_MS", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RPC_TIMEOUT_MS: %w", err)
	}
	config.RPCTimeout = time.Duration(rpcTimeout) * time.Millisecond

	pollInterval, err := strconv.Atoi(getEnv("SESSION_POLL_INTERVAL", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_POLL_INTERVAL: %w", err)
	}
	config.PollInterval = time.Duration(pollInterval) * time.Second

	frameInterval, err := strconv.Atoi(getEnv("FRAME_INTERVAL_MS", "16"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRAME_INTERVAL_MS: %w", err)
	}
	config.FrameInterval = time.Duration(frameInterval) * time.Millisecond

	broadcastInterval, err := strconv.Atoi(getEnv("BROADCAST_INTERVAL_MS", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid BROADCAST_INTERVAL_MS: %w", err)
	}
	config.BroadcastInterval = time.Duration(broadcastInterval) * time.Millisecond

	// WebSocket keepalive constants
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.PongWait = time.Duration(wsReadTimeout) * time.Second
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WriteWait = time.Duration(wsWriteTimeout) * time.Second
	config.MaxMessageSize = 65536

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
