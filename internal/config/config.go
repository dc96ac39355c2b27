// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// TAK server connection.
	TAKAddr        string // host:port of the TAK server CoT stream.
	TAKTLSCert     string // Path to client certificate PEM; empty for plain TCP.
	TAKTLSKey      string // Path to client key PEM.
	TAKTLSCA       string // Path to CA bundle PEM for server verification.
	TAKDialTimeout time.Duration

	// MCP transport: "stdio" or "http".
	Transport string

	// HTTP server settings (http transport only).
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Entity store settings.
	StalenessWindow time.Duration // Default query-time staleness cutoff.
	EntityTTL       time.Duration // Entities unseen this long are evicted.
	MaxEntities     int           // Hard cap on tracked entities; 0 is unlimited.
	HistoryWindow   time.Duration // Track history retention per entity.
	HistoryCap      int           // Track history point cap per entity.

	// Geofence settings.
	DwellDefault time.Duration // Default dwell threshold for new fences.
	AlertCap     int           // Alerts retained in the ring buffer.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		TAKAddr:         envStr("TAK_SERVER_ADDR", "localhost:8087"),
		TAKTLSCert:      envStr("TAK_TLS_CERT", ""),
		TAKTLSKey:       envStr("TAK_TLS_KEY", ""),
		TAKTLSCA:        envStr("TAK_TLS_CA", ""),
		TAKDialTimeout:  envDuration("TAK_DIAL_TIMEOUT", 10*time.Second),
		Transport:       envStr("TAKMCP_TRANSPORT", "stdio"),
		Port:            envInt("TAKMCP_PORT", 8080),
		ReadTimeout:     envDuration("TAKMCP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    envDuration("TAKMCP_WRITE_TIMEOUT", 30*time.Second),
		StalenessWindow: envDuration("TAKMCP_STALENESS_WINDOW", 10*time.Minute),
		EntityTTL:       envDuration("TAKMCP_ENTITY_TTL", time.Hour),
		MaxEntities:     envInt("TAKMCP_MAX_ENTITIES", 10000),
		HistoryWindow:   envDuration("TAKMCP_HISTORY_WINDOW", time.Hour),
		HistoryCap:      envInt("TAKMCP_HISTORY_CAP", 1000),
		DwellDefault:    envDuration("TAKMCP_DWELL_DEFAULT", 5*time.Minute),
		AlertCap:        envInt("TAKMCP_ALERT_CAP", 500),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "takmcp"),
		LogLevel:        envStr("TAKMCP_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.TAKAddr == "" {
		return fmt.Errorf("config: TAK_SERVER_ADDR is required")
	}
	if c.Transport != "stdio" && c.Transport != "http" {
		return fmt.Errorf("config: TAKMCP_TRANSPORT must be stdio or http, got %q", c.Transport)
	}
	if c.Transport == "http" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("config: TAKMCP_PORT must be in 1..65535, got %d", c.Port)
	}
	if (c.TAKTLSCert == "") != (c.TAKTLSKey == "") {
		return fmt.Errorf("config: TAK_TLS_CERT and TAK_TLS_KEY must be set together")
	}
	if c.StalenessWindow < 0 {
		return fmt.Errorf("config: TAKMCP_STALENESS_WINDOW must not be negative")
	}
	if c.MaxEntities < 0 {
		return fmt.Errorf("config: TAKMCP_MAX_ENTITIES must not be negative")
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("config: TAKMCP_HISTORY_CAP must be positive")
	}
	if c.AlertCap <= 0 {
		return fmt.Errorf("config: TAKMCP_ALERT_CAP must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
