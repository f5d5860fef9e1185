// Package config loads the daemon's configuration from a file (YAML, JSON,
// or an INI-like properties dialect -- three equivalent
// surface syntaxes), overlaid by NFSD_* environment variables, which take
// precedence over the file. CLI flags are not part of this overlay; the
// command line only chooses which file is read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ExportConfig is one entry of the exports[] config key.
type ExportConfig struct {
	Path           string   `mapstructure:"path" validate:"required"`
	Clients        []string `mapstructure:"clients"`
	ReadOnly       bool     `mapstructure:"read_only"`
	RootSquash     bool     `mapstructure:"root_squash"`
	AllSquash      bool     `mapstructure:"all_squash"`
	NoSubtreeCheck bool     `mapstructure:"no_subtree_check"`
	Secure         bool     `mapstructure:"secure"`
	AnonUID        uint32   `mapstructure:"anon_uid"`
	AnonGID        uint32   `mapstructure:"anon_gid"`
	Comment        string   `mapstructure:"comment"`
}

// LoggingConfig controls internal/logger.Configure.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig controls the optional Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

// CacheConfig controls the attribute and content caches
// `cache_enabled`/`cache_size`/`cache_ttl`).
type CacheConfig struct {
	Enabled bool          `mapstructure:"cache_enabled"`
	Size    int           `mapstructure:"cache_size" validate:"omitempty,gt=0"`
	TTL     time.Duration `mapstructure:"cache_ttl"`
}

// Config is the root configuration struct, unmarshaled from viper's merged
// file+env view. Field names follow the recognized-options
// table directly; ambient fields (Logging, Metrics, ShutdownTimeout) are
// carried the way they always are regardless of feature-scoping
// Non-goals on observability layers.
type Config struct {
	ListenAddress string `mapstructure:"listen_address" validate:"required"`
	ListenPort    int    `mapstructure:"listen_port" validate:"required,min=1,max=65535"`
	PortmapPort   int    `mapstructure:"portmap_port" validate:"required,min=1,max=65535"`
	RootPath      string `mapstructure:"root_path" validate:"required"`

	Exports []ExportConfig `mapstructure:"exports"`

	MaxConnections int `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	ThreadCount    int `mapstructure:"thread_count" validate:"omitempty,gt=0"`

	RootSquash bool   `mapstructure:"root_squash"`
	AllSquash  bool   `mapstructure:"all_squash"`
	AnonUID    uint32 `mapstructure:"anon_uid"`
	AnonGID    uint32 `mapstructure:"anon_gid"`

	SecurityMode []string `mapstructure:"security_mode"`
	KeytabPath   string   `mapstructure:"keytab_path"`

	ReadSize  int `mapstructure:"read_size" validate:"omitempty,gt=0"`
	WriteSize int `mapstructure:"write_size" validate:"omitempty,gt=0"`

	Cache CacheConfig `mapstructure:"cache"`

	QuotaEnabled bool `mapstructure:"quota_enabled"`

	Logging         LoggingConfig `mapstructure:"logging"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"required,gt=0"`
}

// Load reads configPath (any of YAML/JSON/properties -- viper infers the
// format from the extension) and overlays NFSD_* environment variables,
// applying defaults for anything left unset, then validates the result.
//
// An empty configPath skips the file read and relies on environment and
// defaults alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NFSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	applyDefaults(v)

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyDefaults seeds every viper key that has a documented default,
// so Load succeeds against an empty or partial config file.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", "0.0.0.0")
	v.SetDefault("listen_port", 2049)
	v.SetDefault("portmap_port", 111)
	v.SetDefault("root_path", "/export")
	v.SetDefault("max_connections", 256)
	v.SetDefault("thread_count", 16)
	v.SetDefault("security_mode", []string{"sys", "none"})
	v.SetDefault("read_size", 65536)
	v.SetDefault("write_size", 65536)
	v.SetDefault("cache.cache_enabled", true)
	v.SetDefault("cache.cache_size", 1024)
	v.SetDefault("cache.cache_ttl", "30s")
	v.SetDefault("quota_enabled", false)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", "127.0.0.1:9100")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("idle_timeout", "30s")
}
