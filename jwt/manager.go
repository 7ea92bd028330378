package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used to sign and verify tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret (HMAC-SHA256).
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
)

// Scope is the value of the "scope" claim. It keeps the token kinds
// non-interchangeable.
type Scope string

const (
	ScopeAccess  Scope = "access_token"
	ScopeRefresh Scope = "refresh_token"
	ScopeEmail   Scope = "email_token"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultEmailTTL   = 7 * 24 * time.Hour
)

// Config holds signing keys, lifetimes and validation knobs for a [Manager].
//
// Zero TTLs fall back to the package defaults. A Config is copied into the
// Manager at construction and never read again.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	EmailTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// AcceptUnscopedEmailTokens lets SubjectFromEmailToken accept tokens
	// that carry no scope claim at all. Tokens carrying any other scope are
	// rejected regardless.
	AcceptUnscopedEmailTokens bool
}

// Manager issues and validates access, refresh and email-confirmation
// tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the payload carried by every token: {sub, iat, exp, jti, scope}.
// The random jti keeps two tokens minted in the same second distinct.
type Claims struct {
	Scope Scope `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.EmailTTL == 0 {
		cfg.EmailTTL = DefaultEmailTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.EmailTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints an access token for subject. A zero ttl uses the
// configured AccessTTL; a negative ttl yields an already expired token.
func (j *Manager) IssueAccess(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = j.config.AccessTTL
	}
	return j.issue(subject, ScopeAccess, ttl)
}

// IssueRefresh mints a refresh token for subject. TTL rules match IssueAccess.
func (j *Manager) IssueRefresh(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = j.config.RefreshTTL
	}
	return j.issue(subject, ScopeRefresh, ttl)
}

// IssueEmail mints an email-confirmation token for subject.
func (j *Manager) IssueEmail(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = j.config.EmailTTL
	}
	return j.issue(subject, ScopeEmail, ttl)
}

// ValidateRefresh returns the subject of a refresh token.
//
// Decode, signature and expiry failures return ErrInvalidSignatureOrFormat.
// A well-formed token of another kind returns ErrInvalidScope.
func (j *Manager) ValidateRefresh(tokenStr string) (string, error) {
	claims, err := j.parse(tokenStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignatureOrFormat, err)
	}
	if claims.Scope != ScopeRefresh {
		return "", ErrInvalidScope
	}
	if claims.Subject == "" {
		return "", ErrInvalidSignatureOrFormat
	}
	return claims.Subject, nil
}

// ValidateAccess returns the subject of an access token. Every failure
// (decode, expiry, scope, missing subject) is reported as
// ErrInvalidCredentials.
func (j *Manager) ValidateAccess(tokenStr string) (string, error) {
	claims, err := j.parse(tokenStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if claims.Scope != ScopeAccess {
		return "", fmt.Errorf("%w: unexpected scope %q", ErrInvalidCredentials, claims.Scope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidCredentials)
	}
	return claims.Subject, nil
}

// SubjectFromEmailToken returns the subject of an email-confirmation token.
// Failures return ErrUnprocessableToken.
func (j *Manager) SubjectFromEmailToken(tokenStr string) (string, error) {
	claims, err := j.parse(tokenStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnprocessableToken, err)
	}
	switch claims.Scope {
	case ScopeEmail:
	case "":
		if !j.config.AcceptUnscopedEmailTokens {
			return "", fmt.Errorf("%w: missing scope", ErrUnprocessableToken)
		}
	default:
		return "", fmt.Errorf("%w: unexpected scope %q", ErrUnprocessableToken, claims.Scope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnprocessableToken)
	}
	return claims.Subject, nil
}

// Parse verifies signature, expiry and registered claims and returns the
// raw claims without any scope check.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr)
}

func (j *Manager) issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}

	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

func (j *Manager) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.PublicKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(key)
	default:
		return key, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
