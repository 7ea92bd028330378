package confloader

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/avatar"
	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/internal/mail"
	"github.com/MrEthical07/goContacts/internal/stores"
)

// Config is the contactsd process configuration. The engine settings sit at
// the top level next to the infrastructure sections.
type Config struct {
	goContacts.Config `koanf:",squash"`

	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Avatar   avatar.Config  `koanf:"avatar"`
	Mail     MailConfig     `koanf:"mail"`
	Log      logging.Config `koanf:"log"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	MaxAvatarBytes    int64         `koanf:"max_avatar_bytes"`
}

// DatabaseConfig selects the store driver: "postgres", or "memory" for
// local development.
type DatabaseConfig struct {
	Driver      string            `koanf:"driver"`
	DSN         string            `koanf:"dsn"`
	AutoMigrate bool              `koanf:"auto_migrate"`
	Pool        stores.PoolConfig `koanf:"pool"`
}

// RedisConfig configures the client shared by the principal cache and the
// rate limiters. An empty Addr runs without Redis.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MailConfig selects the confirmation mail driver: "smtp" or "log".
type MailConfig struct {
	Driver      string `koanf:"driver"`
	mail.Config `koanf:",squash"`
}

// Default returns the process defaults. JWT.SecretKey and Database.DSN
// must still be supplied.
func Default() Config {
	return Config{
		Config: goContacts.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
			MaxAvatarBytes:    5 << 20,
		},
		Database: DatabaseConfig{
			Driver:      "postgres",
			AutoMigrate: true,
			Pool:        stores.DefaultPoolConfig(),
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Mail: MailConfig{
			Driver: "log",
			Config: mail.Config{
				Port:    587,
				BaseURL: "http://localhost:8000",
			},
		},
		Log: logging.DefaultConfig(),
	}
}

// Load applies file, environment and overrides on top of [Default] and
// validates the result.
func Load(opts ...Option) (Config, error) {
	cfg := Default()
	if err := NewLoader(opts...).Load(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the engine settings and every infrastructure section.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if c.HTTP.MaxAvatarBytes <= 0 {
		return errors.New("http.max_avatar_bytes must be > 0")
	}
	switch c.Database.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	// Without a bucket avatar uploads are disabled.
	if c.Avatar.Bucket != "" && c.Avatar.PublicBaseURL == "" {
		return errors.New("avatar.public_base_url is required with a bucket")
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			return errors.New("mail.host and mail.from are required for the smtp driver")
		}
	default:
		return fmt.Errorf("unknown mail.driver %q", c.Mail.Driver)
	}
	return nil
}
