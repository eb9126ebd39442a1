// Package config loads application configuration from an optional YAML file
// with defaults and environment variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	JWT      JWTConfig      `koanf:"jwt"`
	Auth     AuthConfig     `koanf:"auth"`
	Message  MessageConfig  `koanf:"message"`
	Token    TokenConfig    `koanf:"token"`
	Sweeper  SweeperConfig  `koanf:"sweeper"`
	Crypto   CryptoConfig   `koanf:"crypto"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port         string        `koanf:"port"`
	Env          string        `koanf:"env"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `koanf:"access_secret"`
	AccessExpiry time.Duration `koanf:"access_expiry"`
	Issuer       string        `koanf:"issuer"`
}

type AuthConfig struct {
	MaxFailedLogins int           `koanf:"max_failed_logins"`
	LockoutWindow   time.Duration `koanf:"lockout_window"`
}

type MessageConfig struct {
	MaxLength  int           `koanf:"max_length"`
	EditWindow time.Duration `koanf:"edit_window"`
}

type TokenConfig struct {
	RefreshExpiry     time.Duration `koanf:"refresh_expiry"`
	SessionExpiry     time.Duration `koanf:"session_expiry"`
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`
}

type SweeperConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type CryptoConfig struct {
	// MessageKey is a hex-encoded 32-byte AES key for message content at rest.
	MessageKey string `koanf:"message_key"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	applyDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	k.Set("server.port", "8080")
	k.Set("server.env", "development")
	k.Set("server.read_timeout", 10*time.Second)
	k.Set("server.write_timeout", 10*time.Second)

	k.Set("database.dsn", "securetalk:securetalk@tcp(localhost:3306)/securetalk?charset=utf8mb4&parseTime=True&loc=Local")
	k.Set("database.max_idle_conns", 10)
	k.Set("database.max_open_conns", 100)
	k.Set("database.conn_max_lifetime", time.Hour)

	k.Set("jwt.access_secret", "change-me-in-production")
	k.Set("jwt.access_expiry", 15*time.Minute)
	k.Set("jwt.issuer", "securetalk")

	k.Set("auth.max_failed_logins", 5)
	k.Set("auth.lockout_window", 30*time.Minute)

	k.Set("message.max_length", 10000)
	k.Set("message.edit_window", 24*time.Hour)

	k.Set("token.refresh_expiry", 7*24*time.Hour)
	k.Set("token.session_expiry", 24*time.Hour)
	k.Set("token.inactivity_timeout", 30*time.Minute)

	k.Set("sweeper.interval", 5*time.Minute)

	// 32 zero bytes; never use outside local development.
	k.Set("crypto.message_key", "0000000000000000000000000000000000000000000000000000000000000000")

	k.Set("logging.level", "info")
}

func applyEnvOverrides(k *koanf.Koanf) {
	setString(k, "server.port", "SERVER_PORT")
	setString(k, "server.env", "SERVER_ENV")
	setString(k, "database.dsn", "DATABASE_DSN")
	setString(k, "jwt.access_secret", "JWT_ACCESS_SECRET")
	setString(k, "crypto.message_key", "MESSAGE_ENCRYPTION_KEY")
	setString(k, "logging.level", "LOG_LEVEL")
	if v := os.Getenv("JWT_ACCESS_EXPIRY_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k.Set("jwt.access_expiry", time.Duration(n)*time.Minute)
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_EXPIRY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k.Set("token.refresh_expiry", time.Duration(n)*24*time.Hour)
		}
	}
}

func setString(k *koanf.Koanf, key, env string) {
	if v := os.Getenv(env); v != "" {
		k.Set(key, v)
	}
}
