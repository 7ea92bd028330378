package goContacts

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goContacts/internal/rate"
	"github.com/MrEthical07/goContacts/session"
)

// RequestEmailConfirmation sends a fresh confirmation link when email
// belongs to an unconfirmed account. It reports success in every other
// case too, so callers cannot probe which emails are registered. Resends
// past the per-address budget are dropped silently.
func (e *Engine) RequestEmailConfirmation(ctx context.Context, email string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	e.metricInc(MetricEmailConfirmationRequested)

	p, err := e.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrPrincipalNotFound):
		e.emitAudit(ctx, auditEventEmailConfirmRequest, false, 0, email, nil, nil)
		return nil
	default:
		e.log.Warn(ctx, "confirmation request lookup failed", "error", err)
		return nil
	}

	if p.Confirmed {
		e.emitAudit(ctx, auditEventEmailConfirmRequest, false, p.ID, p.Email, ErrEmailAlreadyConfirmed, nil)
		return nil
	}

	rl := e.config.RateLimit
	if rl.Enabled {
		err := e.limiter.Allow(ctx, "confirm", strings.ToLower(p.Email), rl.ConfirmRequests, rl.ConfirmWindow)
		switch {
		case errors.Is(err, rate.ErrRateLimited):
			e.emitRateLimit(ctx, "confirm", p.ID, p.Email)
			return nil
		case err != nil:
			e.log.Warn(ctx, "confirmation throttle unavailable", "error", err)
		}
	}
	e.sendConfirmation(ctx, p)
	e.emitAudit(ctx, auditEventEmailConfirmRequest, true, p.ID, p.Email, nil, nil)
	return nil
}

// ConfirmEmail marks the account named by an email token as confirmed.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	email, err := e.tokens.SubjectFromEmailToken(token)
	if err != nil {
		e.emitAudit(ctx, auditEventEmailConfirmed, false, 0, "", ErrEmailTokenUnprocessable, nil)
		return ErrEmailTokenUnprocessable
	}

	p, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrPrincipalNotFound) {
			e.emitAudit(ctx, auditEventEmailConfirmed, false, 0, email, ErrEmailTokenInvalid, nil)
			return ErrEmailTokenInvalid
		}
		return storeError(err)
	}
	if p.Confirmed {
		return ErrEmailAlreadyConfirmed
	}

	if err := e.users.ConfirmEmail(ctx, email); err != nil {
		return storeError(err)
	}
	e.invalidate(ctx, email)

	e.metricInc(MetricEmailConfirmed)
	e.emitAudit(ctx, auditEventEmailConfirmed, true, p.ID, p.Email, nil, nil)
	return nil
}

func (e *Engine) sendConfirmation(ctx context.Context, p *session.Principal) {
	if e.mailer == nil {
		e.log.Warn(ctx, "no mailer configured, confirmation mail skipped", "user_id", p.ID)
		return
	}
	token, err := e.tokens.IssueEmail(p.Email, 0)
	if err != nil {
		e.log.Error(ctx, "email token issue failed", "user_id", p.ID, "error", err)
		return
	}
	msg := ConfirmationMessage{Email: p.Email, Username: p.Username, Token: token}
	if err := e.mailer.SendConfirmation(ctx, msg); err != nil {
		e.log.Warn(ctx, "confirmation mail failed", "user_id", p.ID, "error", err)
	}
}
