// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win; nested keys map to upper case with
// underscores (store.driver -> STORE_DRIVER).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	GRPCPort string `mapstructure:"grpc_port"`
	LogLevel string `mapstructure:"log_level"`

	ProductURL    string        `mapstructure:"product_url"`
	InventoryURL  string        `mapstructure:"inventory_url"`
	WalletURL     string        `mapstructure:"wallet_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`

	JWTKey string `mapstructure:"jwt_key"`

	Store struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	SagaLog struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"saga_log"`

	RedisAddr      string        `mapstructure:"redis_addr"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`

	Compensation struct {
		MaxTries        uint          `mapstructure:"max_tries"`
		InitialInterval time.Duration `mapstructure:"initial_interval"`
		MaxInterval     time.Duration `mapstructure:"max_interval"`
	} `mapstructure:"compensation"`

	Cancel struct {
		Delete bool `mapstructure:"delete"`
	} `mapstructure:"cancel"`

	Recover struct {
		MinAge time.Duration `mapstructure:"min_age"`
	} `mapstructure:"recover"`

	OTel struct {
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
		Enabled     bool   `mapstructure:"enabled"`
	} `mapstructure:"otel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("grpc_port", "9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("product_url", "http://localhost:8081")
	v.SetDefault("inventory_url", "http://localhost:8081")
	v.SetDefault("wallet_url", "http://localhost:8082")
	v.SetDefault("remote_timeout", 5*time.Second)
	v.SetDefault("jwt_key", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("saga_log.path", "saga_log.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("idempotency_ttl", 24*time.Hour)
	v.SetDefault("compensation.max_tries", 3)
	v.SetDefault("compensation.initial_interval", 200*time.Millisecond)
	v.SetDefault("compensation.max_interval", 2*time.Second)
	v.SetDefault("cancel.delete", false)
	v.SetDefault("recover.min_age", time.Minute)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "order-service")
	v.SetDefault("otel.enabled", false)
}

// Load reads configFile when given, then the environment.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The standard OTel variable takes precedence over OTEL_ENDPOINT.
	_ = v.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENDPOINT")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTKey == "" {
		errs = append(errs, errors.New("jwt_key is required"))
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, pgx", c.Store.Driver))
	}
	if c.Store.Driver == "pgx" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for pgx"))
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("remote_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// StubConfig is the smaller settings set of the collaborator dev services.
type StubConfig struct {
	Port     string `mapstructure:"port"`
	JWTKey   string `mapstructure:"jwt_key"`
	LogLevel string `mapstructure:"log_level"`
	OTel     struct {
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
		Enabled     bool   `mapstructure:"enabled"`
	} `mapstructure:"otel"`
}

// LoadStub reads the environment only. The port comes from <PREFIX>_PORT or
// PORT.
func LoadStub(prefix, serviceName, defaultPort string) (*StubConfig, error) {
	v := viper.New()
	v.SetDefault("port", defaultPort)
	v.SetDefault("jwt_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", serviceName)
	v.SetDefault("otel.enabled", false)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", prefix+"_PORT", "PORT")
	_ = v.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENDPOINT")

	cfg := &StubConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
