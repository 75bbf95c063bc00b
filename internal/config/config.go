package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env      string // "development" switches to console logging
	LogLevel string
	Database DatabaseConfig
	GRPC     GRPCConfig
	Auth     AuthConfig
	Dispatch DispatchConfig
	Routing  RoutingConfig
	Redis    RedisConfig
	Agent    AgentConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite file shared by HQ and every driver process
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	SeedDefaults bool // create the default HQ operator and demo driver on startup
}

// DispatchConfig holds the coordination timing knobs.
type DispatchConfig struct {
	MissionExpiry     time.Duration // DISPATCHED missions older than this expire
	OnlineThreshold   time.Duration // a driver seen within this window is online
	OfflineAlertAfter time.Duration // accepted missions whose driver is silent this long are flagged
	TrailInterval     time.Duration // minimum gap between ghost-trail points
	TrailRetention    time.Duration
	SweepInterval     time.Duration // background expiry / prune period in the server
}

// RoutingConfig configures the external routing provider. An empty API key
// means every request degrades to a direct line.
type RoutingConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// RedisConfig enables the optional wake-up channel when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AgentConfig configures the driver agent process.
type AgentConfig struct {
	DriverID          string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	AutoAccept        bool
	SpeedKmh          float64 // simulated cruise speed
}

// Load loads configuration from the environment (and an optional dispatch.env
// file). JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := load("", ".")
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load("dev-secret-change-me", ".")
}

func newViper(defaultSecret, dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("dispatch")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "dispatch.db")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("JWT_SECRET", defaultSecret)
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("SEED_DEFAULTS", true)
	v.SetDefault("MISSION_EXPIRY", "30m")
	v.SetDefault("ONLINE_THRESHOLD", "60s")
	v.SetDefault("OFFLINE_ALERT_AFTER", "150s")
	v.SetDefault("TRAIL_INTERVAL", "5s")
	v.SetDefault("TRAIL_RETENTION", "168h")
	v.SetDefault("SWEEP_INTERVAL", "30s")
	v.SetDefault("ROUTING_BASE_URL", "https://api.tomtom.com")
	v.SetDefault("ROUTING_TIMEOUT", "10s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DRIVER_ID", "UNIT-07")
	v.SetDefault("POLL_INTERVAL", "3s")
	v.SetDefault("HEARTBEAT_INTERVAL", "10s")
	v.SetDefault("AUTO_ACCEPT", true)
	v.SetDefault("DRIVER_SPEED_KMH", 45.0)
	return v
}

// load reads dispatch.env from dir when present. A missing file is fine; a
// file that exists but does not parse is an error.
func load(defaultSecret, dir string) (*Config, error) {
	v := newViper(defaultSecret, dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read dispatch.env: %w", err)
		}
	}

	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			Path: v.GetString("DB_PATH"),
		},
		GRPC: GRPCConfig{
			Address: v.GetString("GRPC_ADDRESS"),
		},
		Auth: AuthConfig{
			JWTSecret:    v.GetString("JWT_SECRET"),
			TokenTTL:     v.GetDuration("TOKEN_TTL"),
			SeedDefaults: v.GetBool("SEED_DEFAULTS"),
		},
		Dispatch: DispatchConfig{
			MissionExpiry:     v.GetDuration("MISSION_EXPIRY"),
			OnlineThreshold:   v.GetDuration("ONLINE_THRESHOLD"),
			OfflineAlertAfter: v.GetDuration("OFFLINE_ALERT_AFTER"),
			TrailInterval:     v.GetDuration("TRAIL_INTERVAL"),
			TrailRetention:    v.GetDuration("TRAIL_RETENTION"),
			SweepInterval:     v.GetDuration("SWEEP_INTERVAL"),
		},
		Routing: RoutingConfig{
			APIKey:  v.GetString("ROUTING_API_KEY"),
			BaseURL: v.GetString("ROUTING_BASE_URL"),
			Timeout: v.GetDuration("ROUTING_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Agent: AgentConfig{
			DriverID:          v.GetString("DRIVER_ID"),
			PollInterval:      v.GetDuration("POLL_INTERVAL"),
			HeartbeatInterval: v.GetDuration("HEARTBEAT_INTERVAL"),
			AutoAccept:        v.GetBool("AUTO_ACCEPT"),
			SpeedKmh:          v.GetFloat64("DRIVER_SPEED_KMH"),
		},
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	d := cfg.Dispatch
	if d.MissionExpiry <= 0 {
		return fmt.Errorf("MISSION_EXPIRY must be positive, got %s", d.MissionExpiry)
	}
	if d.OnlineThreshold <= 0 {
		return fmt.Errorf("ONLINE_THRESHOLD must be positive, got %s", d.OnlineThreshold)
	}
	if d.TrailInterval < 0 || d.TrailRetention < 0 {
		return fmt.Errorf("trail settings must not be negative")
	}
	if cfg.Agent.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.Agent.PollInterval)
	}
	return nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	redis := "disabled"
	if c.Redis.Addr != "" {
		redis = c.Redis.Addr
	}
	routing := "direct-line"
	if c.Routing.APIKey != "" {
		routing = c.Routing.BaseURL
	}
	return fmt.Sprintf("Config{Env: %s, DB: %s, gRPC: %s, Expiry: %s, Online: %s, Routing: %s, Redis: %s, Auth: *** (masked) ***}",
		c.Env, c.Database.Path, c.GRPC.Address, c.Dispatch.MissionExpiry, c.Dispatch.OnlineThreshold, routing, redis)
}
