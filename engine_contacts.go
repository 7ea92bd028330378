package goContacts

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goContacts/session"
)

const maxContactFieldLen = 30

// ContactLimiter is the per-user request budget applied to contact routes.
type ContactLimiter struct {
	e *Engine
}

// ContactLimiter returns the limiter the HTTP layer applies to contact
// routes.
func (e *Engine) ContactLimiter() ContactLimiter {
	return ContactLimiter{e: e}
}

// Allow counts one request for key and returns [ErrRateLimited] when the
// window is exhausted. A Redis failure lets the request through.
func (l ContactLimiter) Allow(ctx context.Context, key string) error {
	e := l.e
	rl := e.config.RateLimit
	if !rl.Enabled {
		return nil
	}
	err := e.limiter.Allow(ctx, "contacts", key, rl.ContactRequests, rl.ContactWindow)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRateLimited):
		e.metricInc(MetricContactRateLimited)
		userID, _ := strconv.ParseInt(key, 10, 64)
		e.emitRateLimit(ctx, "contacts", userID, "")
		return ErrRateLimited
	default:
		e.log.Warn(ctx, "contact limiter unavailable", "error", err)
		return nil
	}
}

// ListContacts pages through the caller's contacts. A zero limit selects
// the configured default.
func (e *Engine) ListContacts(ctx context.Context, p *session.Principal, limit, offset int) ([]Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = e.config.Contacts.DefaultLimit
	}
	if limit < 0 || limit > e.config.Contacts.MaxLimit {
		return nil, invalidInput("limit must be 1..%d", e.config.Contacts.MaxLimit)
	}
	if offset < 0 {
		return nil, invalidInput("offset must be >= 0")
	}
	return e.contacts.List(ctx, p.ID, limit, offset)
}

// GetContact returns one of the caller's contacts or [ErrContactNotFound].
func (e *Engine) GetContact(ctx context.Context, p *session.Principal, id int64) (*Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, invalidInput("contact id must be >= 1")
	}
	return e.contacts.Get(ctx, p.ID, id)
}

// ContactsByName returns contacts whose name matches exactly.
func (e *Engine) ContactsByName(ctx context.Context, p *session.Principal, name string) ([]Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	return e.contacts.FindByName(ctx, p.ID, strings.TrimSpace(name))
}

// ContactsBySurname returns contacts whose surname matches exactly.
func (e *Engine) ContactsBySurname(ctx context.Context, p *session.Principal, surname string) ([]Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	return e.contacts.FindBySurname(ctx, p.ID, strings.TrimSpace(surname))
}

// ContactByEmail returns the caller's contact with that email.
func (e *Engine) ContactByEmail(ctx context.Context, p *session.Principal, email string) (*Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	return e.contacts.FindByEmail(ctx, p.ID, strings.TrimSpace(email))
}

// UpcomingBirthdays returns contacts whose next birthday is at most days
// days away (today counts as zero), soonest first. Zero days selects the
// configured default.
func (e *Engine) UpcomingBirthdays(ctx context.Context, p *session.Principal, days int) ([]Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	if days == 0 {
		days = e.config.Contacts.DefaultBirthdayDays
	}
	if days < 0 || days > e.config.Contacts.MaxBirthdayDays {
		return nil, invalidInput("days must be 1..%d", e.config.Contacts.MaxBirthdayDays)
	}

	all, err := e.contacts.ListAll(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	today := DateOf(e.now())
	horizon := today.AddDate(0, 0, days)
	type upcoming struct {
		c    Contact
		next Date
	}
	var hits []upcoming
	for _, c := range all {
		if c.Birthday.IsZero() {
			continue
		}
		next := c.Birthday.nextOccurrence(today)
		if !next.After(horizon) {
			hits = append(hits, upcoming{c: c, next: next})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].next.Before(hits[j].next.Time) })

	out := make([]Contact, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out, nil
}

// CreateContact validates in and stores it under the caller.
func (e *Engine) CreateContact(ctx context.Context, p *session.Principal, in ContactInput) (*Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	in = normalizeContactInput(in)
	if err := e.validateContact(in); err != nil {
		return nil, err
	}
	c, err := e.contacts.Create(ctx, p.ID, in)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricContactCreated)
	e.emitAudit(ctx, auditEventContactCreated, true, p.ID, p.Email, nil, contactMeta(c.ID))
	return c, nil
}

// UpdateContact replaces every field of an existing contact.
func (e *Engine) UpdateContact(ctx context.Context, p *session.Principal, id int64, in ContactInput) (*Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, invalidInput("contact id must be >= 1")
	}
	in = normalizeContactInput(in)
	if err := e.validateContact(in); err != nil {
		return nil, err
	}
	c, err := e.contacts.Update(ctx, p.ID, id, in)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricContactUpdated)
	e.emitAudit(ctx, auditEventContactUpdated, true, p.ID, p.Email, nil, contactMeta(id))
	return c, nil
}

// RemoveContact deletes a contact and returns what was deleted.
func (e *Engine) RemoveContact(ctx context.Context, p *session.Principal, id int64) (*Contact, error) {
	if err := e.contactsReady(p); err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, invalidInput("contact id must be >= 1")
	}
	c, err := e.contacts.Delete(ctx, p.ID, id)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricContactDeleted)
	e.emitAudit(ctx, auditEventContactDeleted, true, p.ID, p.Email, nil, contactMeta(id))
	return c, nil
}

func (e *Engine) contactsReady(p *session.Principal) error {
	if e == nil || e.contacts == nil {
		return ErrEngineNotReady
	}
	if p == nil {
		return ErrUnauthenticated
	}
	return nil
}

func normalizeContactInput(in ContactInput) ContactInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func (e *Engine) validateContact(in ContactInput) error {
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"surname", in.Surname},
		{"phone", in.Phone},
	} {
		if n := utf8.RuneCountInString(f.value); n < 1 || n > maxContactFieldLen {
			return invalidInput("%s must be 1..%d characters", f.name, maxContactFieldLen)
		}
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Birthday.IsZero() {
		return invalidInput("birthday is required")
	}
	if in.Birthday.After(DateOf(e.now()).Time) {
		return invalidInput("birthday must not be in the future")
	}
	return nil
}
