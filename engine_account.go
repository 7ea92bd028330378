package goContacts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goContacts/password"
	"github.com/MrEthical07/goContacts/session"
)

const (
	maxUsernameLen = 50
	maxEmailLen    = 150
)

// Signup creates an unconfirmed account and sends the confirmation mail.
// A mail failure does not fail the signup.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*session.Principal, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateSignup(req); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByEmail(ctx, req.Email); err == nil {
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignup, false, 0, req.Email, ErrAccountExists, nil)
		return nil, ErrAccountExists
	} else if !errors.Is(err, session.ErrPrincipalNotFound) {
		return nil, storeError(err)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	p := &session.Principal{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    e.now().Unix(),
	}
	if e.defaultAvatar != nil {
		p.Avatar = e.defaultAvatar(req.Email)
	}

	created, err := e.users.Create(ctx, p)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignup, false, 0, req.Email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, storeError(err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignup, true, created.ID, created.Email, nil, nil)
	e.log.Info(ctx, "account created", "user_id", created.ID)

	e.sendConfirmation(ctx, created)
	return created.Snapshot(), nil
}

func validateSignup(req SignupRequest) error {
	if req.Username == "" || len(req.Username) > maxUsernameLen {
		return invalidInput("username must be 1..%d characters", maxUsernameLen)
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := password.CheckLength(req.Password); err != nil {
		return invalidInput("%s", err.Error())
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || len(email) > maxEmailLen {
		return invalidInput("email must be 1..%d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
		return invalidInput("value is not a valid email address")
	}
	return nil
}

// Login checks credentials and issues a token pair. The new refresh token
// replaces any previous one.
func (e *Engine) Login(ctx context.Context, email, pass string) (TokenPair, error) {
	if e == nil || e.users == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", 0, email)
			return TokenPair{}, ErrRateLimited
		}
		// Redis outage: fail open, the IP throttle still applies.
		e.log.Warn(ctx, "login limiter unavailable", "error", err)
	}

	p, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrPrincipalNotFound) {
			return TokenPair{}, e.loginFailed(ctx, email, 0, ErrUnknownEmail)
		}
		return TokenPair{}, storeError(err)
	}
	if !p.Confirmed {
		return TokenPair{}, e.loginFailed(ctx, email, p.ID, ErrEmailNotConfirmed)
	}
	ok, err := e.hasher.Verify(pass, p.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		e.log.Error(ctx, "stored password hash unreadable", "user_id", p.ID, "error", err)
	}
	if !ok {
		return TokenPair{}, e.loginFailed(ctx, email, p.ID, ErrWrongPassword)
	}

	pair, err := e.issuePair(ctx, p)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
		e.log.Warn(ctx, "login limiter reset failed", "error", err)
	}
	e.rehashIfNeeded(ctx, p, pass)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, p.ID, p.Email, nil, nil)
	return pair, nil
}

func (e *Engine) loginFailed(ctx context.Context, email string, userID int64, cause error) error {
	if err := e.limiter.RecordLoginFailure(ctx, email, clientIPFromContext(ctx)); err != nil {
		e.log.Warn(ctx, "login limiter unavailable", "error", err)
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, cause, nil)
	return cause
}

// rehashIfNeeded upgrades legacy bcrypt or weaker Argon2 hashes after a
// successful login.
func (e *Engine) rehashIfNeeded(ctx context.Context, p *session.Principal, pass string) {
	upgrader, ok := e.users.(interface {
		UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	})
	if !ok {
		return
	}
	need, err := e.hasher.NeedsUpgrade(p.PasswordHash)
	if err != nil || !need {
		return
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := upgrader.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		e.log.Warn(ctx, "password rehash failed", "user_id", p.ID, "error", err)
		return
	}
	e.invalidate(ctx, p.Email)
}

// Refresh rotates a refresh token. Presenting a token that is not the one
// on record revokes the stored token, so a stolen token can be used at most
// until its owner refreshes again.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.users == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	email, err := e.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshInvalid)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, 0, "", ErrRefreshInvalid, nil)
		return TokenPair{}, ErrRefreshInvalid
	}

	p, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrPrincipalNotFound) {
			e.metricInc(MetricRefreshInvalid)
			return TokenPair{}, ErrRefreshInvalid
		}
		return TokenPair{}, storeError(err)
	}

	if p.RefreshToken == "" || p.RefreshToken != refreshToken {
		return TokenPair{}, e.rejectRefreshReuse(ctx, p)
	}

	access, refresh, err := e.mintPair(p)
	if err != nil {
		return TokenPair{}, err
	}
	rotated, err := e.users.RotateRefreshToken(ctx, p.ID, refreshToken, refresh)
	if err != nil {
		return TokenPair{}, storeError(err)
	}
	if !rotated {
		// A concurrent redemption of the same token won the swap.
		return TokenPair{}, e.rejectRefreshReuse(ctx, p)
	}
	e.invalidate(ctx, p.Email)

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, p.ID, p.Email, nil, nil)
	return newTokenPair(access, refresh), nil
}

// rejectRefreshReuse revokes whatever refresh token is on record for p and
// returns ErrRefreshInvalid.
func (e *Engine) rejectRefreshReuse(ctx context.Context, p *session.Principal) error {
	if p.RefreshToken != "" {
		if err := e.users.UpdateRefreshToken(ctx, p.ID, ""); err != nil {
			return storeError(err)
		}
		e.invalidate(ctx, p.Email)
	}
	e.metricInc(MetricRefreshInvalid)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, p.ID, p.Email, ErrRefreshInvalid, nil)
	return ErrRefreshInvalid
}

func (e *Engine) mintPair(p *session.Principal) (access, refresh string, err error) {
	if access, err = e.tokens.IssueAccess(p.Email, 0); err != nil {
		return "", "", err
	}
	if refresh, err = e.tokens.IssueRefresh(p.Email, 0); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// issuePair mints a pair and stores its refresh token unconditionally.
func (e *Engine) issuePair(ctx context.Context, p *session.Principal) (TokenPair, error) {
	access, refresh, err := e.mintPair(p)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.users.UpdateRefreshToken(ctx, p.ID, refresh); err != nil {
		return TokenPair{}, storeError(err)
	}
	e.invalidate(ctx, p.Email)
	return newTokenPair(access, refresh), nil
}

// Logout forgets the stored refresh token. Access tokens stay valid until
// they expire.
func (e *Engine) Logout(ctx context.Context, p *session.Principal) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if p == nil {
		return ErrUnauthenticated
	}
	if err := e.users.UpdateRefreshToken(ctx, p.ID, ""); err != nil {
		return storeError(err)
	}
	e.invalidate(ctx, p.Email)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, p.ID, p.Email, nil, nil)
	return nil
}

// CurrentUser resolves an access token to its principal. Every token
// failure is reported as [ErrUnauthenticated].
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*session.Principal, error) {
	if e == nil || e.resolver == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	p, err := e.resolver.Resolve(ctx, accessToken)
	if e.metrics != nil {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, err
	}
	return p, nil
}
