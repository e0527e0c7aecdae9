// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno (los secretos nunca van al YAML).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		DSN             string `yaml:"dsn"`
		MaxConns        int32  `yaml:"max_conns"`
		MinConns        int32  `yaml:"min_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"storage"`

	// Kind selecciona el backend de los componentes key-value (ledger,
	// limiter, throttle): "redis" en producción, "memory" para dev de
	// una sola instancia.
	KV struct {
		Kind   string `yaml:"kind"`
		Addr   string `yaml:"addr"`
		DB     int    `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"kv"`

	Auth struct {
		// Secreto HMAC para validar los access tokens del caller.
		JWTSecret string `yaml:"jwt_secret"`

		VerifyTTL   string `yaml:"verify_ttl"`
		ChangeTTL   string `yaml:"change_ttl"`
		ResetTTL    string `yaml:"reset_ttl"`
		DeletionTTL string `yaml:"deletion_ttl"`
	} `yaml:"auth"`

	Ledger struct {
		TTL string `yaml:"ttl"`
	} `yaml:"ledger"`

	Track struct {
		Window string `yaml:"window"`
	} `yaml:"track"`

	Rate struct {
		Public       ScopeLimit `yaml:"public"`
		Private      ScopeLimit `yaml:"private"`
		Notification ScopeLimit `yaml:"notification"`
	} `yaml:"rate"`

	Email struct {
		// smtp | log
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		From     string `yaml:"from"`
		User     string `yaml:"user"`
		Pass     string `yaml:"pass"`
		StartTLS bool   `yaml:"start_tls"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"email"`

	Janitor struct {
		Interval string `yaml:"interval"`
	} `yaml:"janitor"`
}

// ScopeLimit configura un scope del rate limiter.
type ScopeLimit struct {
	Limit    int    `yaml:"limit"`
	Window   string `yaml:"window"`
	FailOpen bool   `yaml:"fail_open"`
}

// Load lee el YAML (si path no está vacío) y aplica defaults y env.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
	if c.KV.Kind == "" {
		c.KV.Kind = "redis"
	}
	if c.KV.Addr == "" {
		c.KV.Addr = "localhost:6379"
	}
	if c.KV.Prefix == "" {
		c.KV.Prefix = "trust:"
	}
	if c.Email.Driver == "" {
		c.Email.Driver = "log"
	}
	if c.Janitor.Interval == "" {
		c.Janitor.Interval = "1h"
	}
}

// applyEnv pisa valores con variables de entorno; los secretos solo
// entran por acá.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRUST_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("TRUST_REDIS_ADDR"); v != "" {
		c.KV.Addr = v
	}
	if v := os.Getenv("TRUST_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TRUST_SMTP_PASS"); v != "" {
		c.Email.Pass = v
	}
	if v := os.Getenv("TRUST_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Duration parsea un string de duración con fallback.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
