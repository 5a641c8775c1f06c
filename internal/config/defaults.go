package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ju4n97/neurocalc/internal/envvar"
)

const (
	defaultHTTPPort     = 8080
	defaultGRPCPort     = 9090
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultOperation    = "add"
	defaultCacheSize    = 8
	defaultCacheTTL     = 5 * time.Minute
	defaultLogLevel     = "info"
	defaultLogFile      = "logs/neurocalc.log"
)

// DefaultHTTPPort returns the HTTP port from the environment or the default.
func DefaultHTTPPort() int {
	return portFromEnv(envvar.NeurocalcServerHTTPPort, defaultHTTPPort)
}

// DefaultGRPCPort returns the gRPC port from the environment or the default.
func DefaultGRPCPort() int {
	return portFromEnv(envvar.NeurocalcServerGRPCPort, defaultGRPCPort)
}

func portFromEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return fallback
}

// DefaultConfigPath returns the default path for the neurocalc config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "neurocalc", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "neurocalc")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "neurocalc")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "neurocalc")
		}
		return filepath.Join(home, ".config", "neurocalc")
	}
}
