package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded from a config file
// with environment overrides.
type Config struct {
	Server    Server        `mapstructure:"server"`
	Logging   Logging       `mapstructure:"logging"`
	DB        DB            `mapstructure:"db"`
	Databases map[string]DB `mapstructure:"databases"`
	Routes    []Route       `mapstructure:"routes"`
	Errors    Errors        `mapstructure:"errors"`
}

// Server tunes the reactor and the worker pool.
type Server struct {
	Addr               string        `mapstructure:"addr"`
	Listen             []string      `mapstructure:"listen"`
	Workers            int           `mapstructure:"workers"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	MaxRequestsPerConn int           `mapstructure:"max_requests_per_conn"`
	ReadBufferSize     int           `mapstructure:"read_buffer_size"`
	MaxRequestLine     int           `mapstructure:"max_request_line"`
	MaxHeaderBytes     int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	RestartBackoff     time.Duration `mapstructure:"restart_backoff"`
	MaxRestarts        int           `mapstructure:"max_restarts"`
}

// Logging selects the zap profile.
type Logging struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DB configures a postgres pool. The top-level db section is the default
// pool; databases adds named pools.
type DB struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpen      int           `mapstructure:"max_open"`
	MaxIdle      int           `mapstructure:"max_idle"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

// Route is one route table entry: a pattern, the dotted handler name, and
// static args handed to the handler factory.
type Route struct {
	Pattern string         `mapstructure:"pattern"`
	Handler string         `mapstructure:"handler"`
	Args    map[string]any `mapstructure:"args"`
}

// Errors maps status codes to error page template files. Keys stay strings
// because config keys arrive as strings; app parses them at startup.
type Errors struct {
	Templates map[string]string `mapstructure:"templates"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and STRAND_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.workers", 0)
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_requests_per_conn", 0)
	v.SetDefault("server.read_buffer_size", 8192)
	v.SetDefault("server.restart_backoff", "1s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.max_open", 8)
	v.SetDefault("db.max_idle", 4)
	v.SetDefault("db.conn_lifetime", "30m")
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("config: server.workers must be >= 0")
	}
	for i, rt := range c.Routes {
		if rt.Pattern == "" || rt.Handler == "" {
			return fmt.Errorf("config: route %d needs both pattern and handler", i)
		}
	}
	for name, db := range c.Databases {
		if db.DSN == "" {
			return fmt.Errorf("config: databases.%s needs a dsn", name)
		}
	}
	return nil
}
