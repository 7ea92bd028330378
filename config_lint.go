package goContacts

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a setting that is valid but probably unintended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the output of [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, len(hits))
	for i, w := range hits {
		parts[i] = w.Code + ": " + w.Message
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports risky settings that Validate accepts. Call it after Validate.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintWarn, "JWT leeway %s accepts expired tokens for a long time", c.JWT.Leeway)
	}
	if c.JWT.AccessTTL > 30*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens live %s and cannot be revoked", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL > 14*24*time.Hour {
		add("refresh_ttl_long", LintInfo, "refresh tokens live %s", c.JWT.RefreshTTL)
	}
	if strings.EqualFold(c.JWT.SigningMethod, "hs256") {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
	}
	if c.JWT.AcceptUnscopedEmailTokens {
		add("unscoped_email_tokens", LintWarn, "email confirmation accepts tokens without a scope claim")
	}

	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory %d KiB is below 64 MiB", c.Password.Memory)
	}

	if !c.Cache.Enabled {
		add("cache_disabled", LintInfo, "every authenticated request reads the user store")
	}

	if !c.RateLimit.Enabled && c.RateLimit.AuthRPS == 0 {
		add("rate_limits_disabled", LintWarn, "no rate limit applies to auth or contact routes")
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxLoginAttempts == 0 {
		add("login_lockout_disabled", LintWarn, "failed logins are never throttled per account")
	}
	if c.RateLimit.EnableIPThrottle && c.RateLimit.AuthRPS == 0 && c.RateLimit.AuthBurst > 0 {
		add("ip_throttle_zero_rate", LintHigh, "IP throttle refills at 0 rps and locks clients out after %d requests", c.RateLimit.AuthBurst)
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not recorded")
	}

	return ws
}
