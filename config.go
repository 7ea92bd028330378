package goContacts

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goContacts/password"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every engine setting. Build copies it; later mutation of the
// caller's value has no effect.
type Config struct {
	JWT       JWTConfig       `koanf:"jwt"`
	Cache     CacheConfig     `koanf:"cache"`
	Password  PasswordConfig  `koanf:"password"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Contacts  ContactsConfig  `koanf:"contacts"`
	Audit     AuditConfig     `koanf:"audit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token service. SecretKey is used for hs256,
// the PEM keys for ed25519.
type JWTConfig struct {
	SigningMethod string        `koanf:"signing_method"`
	SecretKey     string        `koanf:"secret_key"`
	PrivateKeyPEM string        `koanf:"private_key_pem"`
	PublicKeyPEM  string        `koanf:"public_key_pem"`
	KeyID         string        `koanf:"key_id"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	EmailTTL      time.Duration `koanf:"email_ttl"`
	Leeway        time.Duration `koanf:"leeway"`

	AcceptUnscopedEmailTokens bool `koanf:"accept_unscoped_email_tokens"`
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the principal cache in front of the user store.
type CacheConfig struct {
	Enabled   bool          `koanf:"enabled"`
	KeyPrefix string        `koanf:"key_prefix"`
	TTL       time.Duration `koanf:"ttl"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost for new hashes and the bcrypt cost
// legacy hashes are compared against.
type PasswordConfig struct {
	Memory      uint32 `koanf:"memory"`
	Time        uint32 `koanf:"time"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
	BcryptCost  int    `koanf:"bcrypt_cost"`
}

func (c PasswordConfig) argon2() password.Argon2Config {
	return password.Argon2Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds Redis-backed budgets. AuthRPS and AuthBurst feed the
// in-process per-IP throttle on the auth routes. ConfirmRequests caps
// confirmation mails resent to one address per ConfirmWindow; zero disables it.
type RateLimitConfig struct {
	Enabled          bool          `koanf:"enabled"`
	ContactRequests  int           `koanf:"contact_requests"`
	ContactWindow    time.Duration `koanf:"contact_window"`
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LoginCooldown    time.Duration `koanf:"login_cooldown"`
	EnableIPThrottle bool          `koanf:"enable_ip_throttle"`
	AuthRPS          float64       `koanf:"auth_rps"`
	AuthBurst        int           `koanf:"auth_burst"`
	ConfirmRequests  int           `koanf:"confirm_requests"`
	ConfirmWindow    time.Duration `koanf:"confirm_window"`
}

/*
====================================
CONTACTS CONFIG
====================================
*/

// ContactsConfig bounds list queries.
type ContactsConfig struct {
	DefaultLimit        int `koanf:"default_limit"`
	MaxLimit            int `koanf:"max_limit"`
	DefaultBirthdayDays int `koanf:"default_birthday_days"`
	MaxBirthdayDays     int `koanf:"max_birthday_days"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
	// MaxBatch caps how many queued events a batching sink receives per
	// write. Zero means one event at a time.
	MaxBatch int `koanf:"max_batch"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// DefaultConfig returns production defaults. JWT.SecretKey is left empty
// and must be supplied.
func DefaultConfig() Config {
	argon := password.DefaultArgon2Config()
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			EmailTTL:      7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:   true,
			KeyPrefix: "user:",
			TTL:       900 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      argon.Memory,
			Time:        argon.Time,
			Parallelism: argon.Parallelism,
			SaltLength:  argon.SaltLength,
			KeyLength:   argon.KeyLength,
			BcryptCost:  bcrypt.DefaultCost,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			ContactRequests:  10,
			ContactWindow:    60 * time.Second,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,
			AuthRPS:          5,
			AuthBurst:        10,
			ConfirmRequests:  3,
			ConfirmWindow:    time.Hour,
		},
		Contacts: ContactsConfig{
			DefaultLimit:        10,
			MaxLimit:            500,
			DefaultBirthdayDays: 7,
			MaxBirthdayDays:     366,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
			MaxBatch:   64,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.SecretKey) < 16 {
			return errors.New("JWT SecretKey must be at least 16 bytes for hs256")
		}
	case "ed25519":
		if c.JWT.PrivateKeyPEM == "" || c.JWT.PublicKeyPEM == "" {
			return errors.New("ed25519 requires PrivateKeyPEM and PublicKeyPEM")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.EmailTTL <= 0 {
		return errors.New("JWT TTLs must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Cache
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return errors.New("Cache TTL must be > 0")
		}
		if c.Cache.KeyPrefix == "" {
			return errors.New("Cache KeyPrefix must not be empty")
		}
	}

	// Password
	if err := c.Password.argon2().Validate(); err != nil {
		return err
	}
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return errors.New("Password BcryptCost out of range")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.ContactRequests <= 0 || c.RateLimit.ContactWindow <= 0 {
			return errors.New("RateLimit contact budget must be > 0")
		}
		if c.RateLimit.MaxLoginAttempts < 0 {
			return errors.New("RateLimit MaxLoginAttempts must be >= 0")
		}
		if c.RateLimit.MaxLoginAttempts > 0 && c.RateLimit.LoginCooldown <= 0 {
			return errors.New("RateLimit LoginCooldown must be > 0")
		}
		if c.RateLimit.ConfirmRequests < 0 {
			return errors.New("RateLimit ConfirmRequests must be >= 0")
		}
		if c.RateLimit.ConfirmRequests > 0 && c.RateLimit.ConfirmWindow <= 0 {
			return errors.New("RateLimit ConfirmWindow must be > 0")
		}
	}
	if c.RateLimit.AuthRPS < 0 || c.RateLimit.AuthBurst < 0 {
		return errors.New("RateLimit auth throttle must be >= 0")
	}

	// Contacts
	if c.Contacts.DefaultLimit <= 0 || c.Contacts.MaxLimit < c.Contacts.DefaultLimit {
		return errors.New("Contacts limits must satisfy 0 < DefaultLimit <= MaxLimit")
	}
	if c.Contacts.DefaultBirthdayDays <= 0 || c.Contacts.MaxBirthdayDays < c.Contacts.DefaultBirthdayDays {
		return errors.New("Contacts birthday window must satisfy 0 < Default <= Max")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.MaxBatch < 0 {
		return errors.New("Audit MaxBatch must be >= 0")
	}

	return nil
}
