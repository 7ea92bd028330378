package goContacts

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/MrEthical07/goContacts/session"
)

// AvatarKey is the object key of a user's avatar. Uploads overwrite it.
func AvatarKey(p *session.Principal) string {
	return "avatars/" + p.Username + strconv.FormatInt(p.ID, 10)
}

// UpdateAvatar uploads a new avatar and stores its URL on the account.
func (e *Engine) UpdateAvatar(ctx context.Context, p *session.Principal, body io.Reader, size int64, contentType string) (*session.Principal, error) {
	if e == nil || e.users == nil || e.avatars == nil {
		return nil, ErrEngineNotReady
	}
	if p == nil {
		return nil, ErrUnauthenticated
	}

	url, err := e.avatars.Put(ctx, AvatarKey(p), body, size, contentType)
	if err != nil {
		e.log.Error(ctx, "avatar upload failed", "user_id", p.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAvatarUploadFailed, err)
	}

	updated, err := e.users.UpdateAvatar(ctx, p.Email, url)
	if err != nil {
		return nil, storeError(err)
	}
	e.invalidate(ctx, p.Email)

	e.metricInc(MetricAvatarUpdated)
	e.emitAudit(ctx, auditEventAvatarUpdated, true, p.ID, p.Email, nil, nil)
	return updated.Snapshot(), nil
}
