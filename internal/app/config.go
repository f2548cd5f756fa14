package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. AGENTDESK_SERVER_PORT.
const EnvPrefix = "AGENTDESK"

// Config represents the runtime configuration for the agentdesk backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client and route.
type RateLimitConfig struct {
	Requests      int           `mapstructure:"requests"`
	Window        time.Duration `mapstructure:"window"`
	LoginRequests int           `mapstructure:"login_requests"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	LogSQL   bool         `mapstructure:"log_sql"`
	Pool     PoolSettings `mapstructure:"pool"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// PoolSettings bounds the connection pool. Zero values keep driver defaults.
type PoolSettings struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT         JWTSettings        `mapstructure:"jwt"`
	Session     SessionSettings    `mapstructure:"session"`
	Lockout     LockoutSettings    `mapstructure:"lockout"`
	Invitation  InvitationSettings `mapstructure:"invitation"`
	Credentials CredentialSettings `mapstructure:"credentials"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
	Leeway time.Duration `mapstructure:"leeway"`
}

// SessionSettings configures session lifetimes and refresh tokens.
type SessionSettings struct {
	TTL           time.Duration `mapstructure:"ttl"`
	RefreshLength int           `mapstructure:"refresh_token_length"`
}

// LockoutSettings controls failed-login lockout.
type LockoutSettings struct {
	Threshold  int           `mapstructure:"threshold"`
	Duration   time.Duration `mapstructure:"duration"`
	FailClosed bool          `mapstructure:"fail_closed"`
}

// InvitationSettings controls invitation lifetime.
type InvitationSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// CredentialSettings selects the KDF for new credential hashes.
type CredentialSettings struct {
	Algorithm string         `mapstructure:"algorithm"`
	Scrypt    ScryptSettings `mapstructure:"scrypt"`
}

// ScryptSettings overrides the scrypt cost. Zero values keep the defaults.
type ScryptSettings struct {
	N int `mapstructure:"n"`
	R int `mapstructure:"r"`
	P int `mapstructure:"p"`
}

// MaintenanceConfig schedules background housekeeping.
type MaintenanceConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SessionSchedule string `mapstructure:"session_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// An explicit file path wins over the search paths.
func LoadConfig(file string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file = strings.TrimSpace(file); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		for _, path := range paths {
			v.AddConfigPath(path)
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 300)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.login_requests", 10)
	v.SetDefault("server.rate_limit.login_window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/agentdesk.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_sql", false)
	v.SetDefault("database.pool.max_open_conns", 0)
	v.SetDefault("database.pool.max_idle_conns", 0)
	v.SetDefault("database.pool.conn_max_lifetime", "0s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "agentdesk")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.leeway", "5s")
	v.SetDefault("auth.session.ttl", "24h")
	v.SetDefault("auth.session.refresh_token_length", 48)
	v.SetDefault("auth.lockout.threshold", 5)
	v.SetDefault("auth.lockout.duration", "15m")
	v.SetDefault("auth.lockout.fail_closed", false)
	v.SetDefault("auth.invitation.ttl", "48h")
	v.SetDefault("auth.credentials.algorithm", "scrypt")
	v.SetDefault("auth.credentials.scrypt.n", 0)
	v.SetDefault("auth.credentials.scrypt.r", 0)
	v.SetDefault("auth.credentials.scrypt.p", 0)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.session_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
