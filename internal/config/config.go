package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultUpdatesDir       = "./updates"
	DefaultCompiledDir      = "./storage/framework/cache"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultHTTPAddr         = ":8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultRedisPrefix      = "crm:cache:"
)

// SetupCompletedStatus is the SETUP_STATUS value written by the installer
// once the application has been set up.
const SetupCompletedStatus = "COMPLETED"

// RedisConfig holds the connection settings of the general cache store.
// An empty Address disables the store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	UpdatesDir       string
	SetupStatus      string
	CompiledDir      string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	Redis            RedisConfig
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	UpdatesDir       string `yaml:"updates_dir"`
	SetupStatus      string `yaml:"setup_status"`
	CompiledDir      string `yaml:"compiled_dir"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	HTTPAddr         string `yaml:"http_addr"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	Redis            struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		UpdatesDir:       DefaultUpdatesDir,
		CompiledDir:      DefaultCompiledDir,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		HTTPAddr:         DefaultHTTPAddr,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		Redis:            RedisConfig{Prefix: DefaultRedisPrefix},
	}
}

// SetupCompleted reports whether the installer has marked setup as complete.
// The update routine must not run before that.
func (c *Config) SetupCompleted() bool {
	return c.SetupStatus == SetupCompletedStatus
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.UpdatesDir, raw.UpdatesDir)
	setString(&cfg.SetupStatus, raw.SetupStatus)
	setString(&cfg.CompiledDir, raw.CompiledDir)
	setString(&cfg.HTTPAddr, raw.HTTPAddr)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogFormat, raw.LogFormat)
	setString(&cfg.Redis.Address, raw.Redis.Address)
	setString(&cfg.Redis.Password, raw.Redis.Password)
	setString(&cfg.Redis.Prefix, raw.Redis.Prefix)

	if raw.Redis.DB != 0 {
		cfg.Redis.DB = raw.Redis.DB
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

// MergeEnv overrides config fields from CRM_* environment variables.
// SETUP_STATUS is read without prefix because the installer writes it.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("SETUP_STATUS"); v != "" {
		cfg.SetupStatus = v
	}

	envString(&cfg.DatabaseURL, "CRM_DATABASE_URL")
	envString(&cfg.UpdatesDir, "CRM_UPDATES_DIR")
	envString(&cfg.CompiledDir, "CRM_COMPILED_DIR")
	envString(&cfg.HTTPAddr, "CRM_HTTP_ADDR")
	envString(&cfg.LogLevel, "CRM_LOG_LEVEL")
	envString(&cfg.LogFormat, "CRM_LOG_FORMAT")
	envString(&cfg.Redis.Address, "CRM_REDIS_ADDRESS")
	envString(&cfg.Redis.Password, "CRM_REDIS_PASSWORD")
	envString(&cfg.Redis.Prefix, "CRM_REDIS_PREFIX")

	if v := os.Getenv("CRM_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("CRM_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("CRM_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envString(dst *string, key string) {
	setString(dst, os.Getenv(key))
}
