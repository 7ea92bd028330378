package goContacts

import (
	"context"
	"errors"
	"strconv"

	internalaudit "github.com/MrEthical07/goContacts/internal/audit"
	"github.com/MrEthical07/goContacts/internal/logging"
)

const (
	auditEventSignup              = "signup"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventLogout              = "logout"
	auditEventEmailConfirmRequest = "email_confirmation_request"
	auditEventEmailConfirmed      = "email_confirmed"
	auditEventAvatarUpdated       = "avatar_updated"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventContactCreated      = "contact_created"
	auditEventContactUpdated      = "contact_updated"
	auditEventContactDeleted      = "contact_deleted"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnknownEmail       AuditErrorCode = "unknown_email"
	auditErrWrongPassword      AuditErrorCode = "wrong_password"
	auditErrNotConfirmed       AuditErrorCode = "email_not_confirmed"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := internalaudit.Event{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		RequestID: logging.RequestID(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, userID int64, email string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, userID, email, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func contactMeta(id int64) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"contact_id": strconv.FormatInt(id, 10)}
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnknownEmail):
		return auditErrUnknownEmail
	case errors.Is(err, ErrWrongPassword):
		return auditErrWrongPassword
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailNotConfirmed):
		return auditErrNotConfirmed
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrEmailTokenInvalid),
		errors.Is(err, ErrEmailTokenUnprocessable),
		errors.Is(err, ErrUnauthenticated):
		return auditErrInvalidToken
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrUserStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
