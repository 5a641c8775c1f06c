package config

import (
	"time"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string       `json:"version"          yaml:"version"`
	Server  ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	Models  ModelsConfig `json:"models"           yaml:"models"`
	Log     LogConfig    `json:"log,omitempty"    yaml:"log,omitempty"`
}

// ServerConfig holds configuration for the HTTP and gRPC listeners.
type ServerConfig struct {
	ModelsDir    string        `json:"models_dir,omitempty"    yaml:"models_dir,omitempty"`
	HTTPPort     int           `json:"http_port,omitempty"     yaml:"http_port,omitempty"`
	GRPCPort     int           `json:"grpc_port,omitempty"     yaml:"grpc_port,omitempty"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty"  yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
}

// ModelsConfig holds configuration for artifact resolution.
type ModelsConfig struct {
	Origin           string        `json:"origin,omitempty"            yaml:"origin,omitempty"`
	DefaultOperation string        `json:"default_operation,omitempty" yaml:"default_operation,omitempty"`
	FetchTimeout     time.Duration `json:"fetch_timeout,omitempty"     yaml:"fetch_timeout,omitempty"`
	Cache            CacheConfig   `json:"cache,omitempty"             yaml:"cache,omitempty"`
}

// CacheConfig holds configuration for the artifact cache.
type CacheConfig struct {
	Size int           `json:"size,omitempty" yaml:"size,omitempty"`
	TTL  time.Duration `json:"ttl,omitempty"  yaml:"ttl,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `json:"level,omitempty"   yaml:"level,omitempty"`
	File   string `json:"file,omitempty"    yaml:"file,omitempty"`
	ToFile bool   `json:"to_file,omitempty" yaml:"to_file,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort()
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = DefaultGRPCPort()
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaultWriteTimeout
	}
	if c.Models.DefaultOperation == "" {
		c.Models.DefaultOperation = defaultOperation
	}
	if c.Models.Cache.Size == 0 {
		c.Models.Cache.Size = defaultCacheSize
	}
	if c.Models.Cache.TTL == 0 {
		c.Models.Cache.TTL = defaultCacheTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.File == "" {
		c.Log.File = defaultLogFile
	}
}
