package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-0123456789abcdef")

func newHSManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{SigningMethod: MethodHS256, PrivateKey: testSecret}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func signRaw(t *testing.T, claims gjwt.Claims, key []byte) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	access, err := m.IssueAccess("alice@example.com", 0)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if sub, err := m.ValidateAccess(access); err != nil || sub != "alice@example.com" {
		t.Fatalf("validate access: sub=%q err=%v", sub, err)
	}

	refresh, err := m.IssueRefresh("bob@example.com", 0)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if sub, err := m.ValidateRefresh(refresh); err != nil || sub != "bob@example.com" {
		t.Fatalf("validate refresh: sub=%q err=%v", sub, err)
	}

	email, err := m.IssueEmail("carol@example.com", 0)
	if err != nil {
		t.Fatalf("issue email: %v", err)
	}
	if sub, err := m.SubjectFromEmailToken(email); err != nil || sub != "carol@example.com" {
		t.Fatalf("subject from email token: sub=%q err=%v", sub, err)
	}
}

func TestIssuedClaimsCarryScopeAndDefaultLifetime(t *testing.T) {
	m := newHSManager(t, nil)

	cases := []struct {
		name  string
		issue func(string, time.Duration) (string, error)
		scope Scope
		ttl   time.Duration
	}{
		{"access", m.IssueAccess, ScopeAccess, 900 * time.Second},
		{"refresh", m.IssueRefresh, ScopeRefresh, 604800 * time.Second},
		{"email", m.IssueEmail, ScopeEmail, 604800 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := tc.issue("x@example.com", 0)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			claims, err := m.Parse(token)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if claims.Scope != tc.scope {
				t.Fatalf("expected scope %q, got %q", tc.scope, claims.Scope)
			}
			if claims.Subject != "x@example.com" {
				t.Fatalf("unexpected subject %q", claims.Subject)
			}
			lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
			if lifetime != tc.ttl {
				t.Fatalf("expected lifetime %v, got %v", tc.ttl, lifetime)
			}
		})
	}
}

func TestCrossScopeRejection(t *testing.T) {
	m := newHSManager(t, nil)

	access, _ := m.IssueAccess("alice@example.com", 0)
	refresh, _ := m.IssueRefresh("alice@example.com", 0)
	email, _ := m.IssueEmail("alice@example.com", 0)

	if _, err := m.ValidateRefresh(access); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("access as refresh: expected ErrInvalidScope, got %v", err)
	}
	if _, err := m.ValidateRefresh(email); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("email as refresh: expected ErrInvalidScope, got %v", err)
	}
	if _, err := m.ValidateAccess(refresh); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("refresh as access: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.ValidateAccess(email); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("email as access: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.SubjectFromEmailToken(access); !errors.Is(err, ErrUnprocessableToken) {
		t.Fatalf("access as email: expected ErrUnprocessableToken, got %v", err)
	}
	if _, err := m.SubjectFromEmailToken(refresh); !errors.Is(err, ErrUnprocessableToken) {
		t.Fatalf("refresh as email: expected ErrUnprocessableToken, got %v", err)
	}
}

func TestExpiredTokensFailEveryValidator(t *testing.T) {
	m := newHSManager(t, nil)

	access, err := m.IssueAccess("alice@example.com", -time.Second)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, _ := m.IssueRefresh("alice@example.com", -time.Second)
	email, _ := m.IssueEmail("alice@example.com", -time.Second)

	if _, err := m.ValidateAccess(access); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expired access: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.ValidateRefresh(refresh); !errors.Is(err, ErrInvalidSignatureOrFormat) {
		t.Fatalf("expired refresh: expected ErrInvalidSignatureOrFormat, got %v", err)
	}
	if _, err := m.ValidateRefresh(access); !errors.Is(err, ErrInvalidSignatureOrFormat) {
		t.Fatalf("expired access as refresh: expiry must win over scope, got %v", err)
	}
	if _, err := m.SubjectFromEmailToken(email); !errors.Is(err, ErrUnprocessableToken) {
		t.Fatalf("expired email: expected ErrUnprocessableToken, got %v", err)
	}
}

func TestTamperedAndMalformedTokens(t *testing.T) {
	m := newHSManager(t, nil)
	refresh, _ := m.IssueRefresh("alice@example.com", 0)

	parts := strings.Split(refresh, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWT, got %d parts", len(parts))
	}
	forged := signRaw(t, Claims{Scope: ScopeRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "mallory@example.com",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, []byte("another-secret-another-secret-00"))
	spliced := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	inputs := []string{"", "not.a.jwt", "a.b", forged, spliced}
	for _, in := range inputs {
		if _, err := m.ValidateRefresh(in); !errors.Is(err, ErrInvalidSignatureOrFormat) {
			t.Fatalf("input %q: expected ErrInvalidSignatureOrFormat, got %v", in, err)
		}
		if _, err := m.ValidateAccess(in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("input %q: expected ErrInvalidCredentials, got %v", in, err)
		}
	}
}

func TestRejectsNoneAndForeignAlgorithms(t *testing.T) {
	m := newHSManager(t, nil)

	claims := Claims{Scope: ScopeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.ValidateAccess(none); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}

	_, priv := newEdKeys(t)
	ed, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign eddsa: %v", err)
	}
	if _, err := m.ValidateAccess(ed); err == nil {
		t.Fatal("expected EdDSA token to be rejected by an HS256 manager")
	}
}

func TestMissingClaimsRejected(t *testing.T) {
	m := newHSManager(t, nil)

	noExp := signRaw(t, Claims{Scope: ScopeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:  "alice@example.com",
		IssuedAt: gjwt.NewNumericDate(time.Now()),
	}}, testSecret)
	if _, err := m.ValidateAccess(noExp); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}

	noSub := signRaw(t, Claims{Scope: ScopeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}, testSecret)
	if _, err := m.ValidateAccess(noSub); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected missing subject to fail, got %v", err)
	}

	futureIAT := signRaw(t, Claims{Scope: ScopeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
	}}, testSecret)
	if _, err := m.ValidateAccess(futureIAT); err == nil {
		t.Fatal("expected future iat to be rejected")
	}
}

func TestUnscopedEmailTokens(t *testing.T) {
	unscoped := signRaw(t, gjwt.RegisteredClaims{
		Subject:   "legacy@example.com",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	strict := newHSManager(t, nil)
	if _, err := strict.SubjectFromEmailToken(unscoped); !errors.Is(err, ErrUnprocessableToken) {
		t.Fatalf("strict manager: expected ErrUnprocessableToken, got %v", err)
	}

	lenient := newHSManager(t, func(c *Config) { c.AcceptUnscopedEmailTokens = true })
	sub, err := lenient.SubjectFromEmailToken(unscoped)
	if err != nil || sub != "legacy@example.com" {
		t.Fatalf("lenient manager: sub=%q err=%v", sub, err)
	}

	access, _ := lenient.IssueAccess("alice@example.com", 0)
	if _, err := lenient.SubjectFromEmailToken(access); !errors.Is(err, ErrUnprocessableToken) {
		t.Fatalf("lenient manager must still reject scoped foreign tokens, got %v", err)
	}
}

func TestIssuerAudienceAndLeeway(t *testing.T) {
	m := newHSManager(t, func(c *Config) {
		c.Issuer = "contacts"
		c.Audience = "api"
		c.Leeway = 30 * time.Second
	})

	access, err := m.IssueAccess("alice@example.com", 0)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.ValidateAccess(access); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}

	wrongIssuer := signRaw(t, Claims{Scope: ScopeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}, testSecret)
	if _, err := m.ValidateAccess(wrongIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	withinLeeway, _ := m.IssueAccess("alice@example.com", -10*time.Second)
	if _, err := m.ValidateAccess(withinLeeway); err != nil {
		t.Fatalf("expected token expired within leeway to pass, got %v", err)
	}
}

func TestEd25519KeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	oldSigner, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv1, PublicKey: pub1, KeyID: "k1"})
	if err != nil {
		t.Fatalf("old signer: %v", err)
	}
	verifier, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv2,
		PublicKey:     pub2,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	old, _ := oldSigner.IssueAccess("alice@example.com", 0)
	if sub, err := verifier.ValidateAccess(old); err != nil || sub != "alice@example.com" {
		t.Fatalf("token signed with retiring key: sub=%q err=%v", sub, err)
	}
	fresh, _ := verifier.IssueAccess("alice@example.com", 0)
	if _, err := verifier.ValidateAccess(fresh); err != nil {
		t.Fatalf("token signed with current key: %v", err)
	}

	stranger, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv1, PublicKey: pub1, KeyID: "k9"})
	if err != nil {
		t.Fatalf("stranger: %v", err)
	}
	unknown, _ := stranger.IssueAccess("alice@example.com", 0)
	if _, err := verifier.ValidateAccess(unknown); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"hs256 defaults", Config{PrivateKey: testSecret}, false},
		{"hs256 missing key", Config{SigningMethod: MethodHS256}, true},
		{"negative ttl", Config{PrivateKey: testSecret, AccessTTL: -time.Second}, true},
		{"leeway too large", Config{PrivateKey: testSecret, Leeway: 3 * time.Minute}, true},
		{"unsupported method", Config{SigningMethod: "rs256", PrivateKey: testSecret}, true},
		{"ed25519 verify only", Config{SigningMethod: MethodEd25519, PublicKey: pub}, false},
		{"ed25519 without public key", Config{SigningMethod: MethodEd25519}, true},
		{"kid missing from verify set", Config{SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "x", VerifyKeys: map[string][]byte{"y": pub}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewManager(tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	m := newHSManager(t, nil)
	if _, err := m.IssueAccess("", 0); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
}

func TestSameSecondTokensAreDistinct(t *testing.T) {
	m := newHSManager(t, nil)

	first, err := m.IssueRefresh("a@example.com", 0)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	second, err := m.IssueRefresh("a@example.com", 0)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if first == second {
		t.Fatal("expected back-to-back refresh tokens to differ")
	}

	c1, err := m.Parse(first)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c2, err := m.Parse(second)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c1.ID == "" || c1.ID == c2.ID {
		t.Fatalf("expected unique jti, got %q and %q", c1.ID, c2.ID)
	}
}
