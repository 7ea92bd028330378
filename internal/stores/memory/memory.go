// Package memory holds map-backed user and contact stores for local
// development and load testing. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/session"
)

// ErrDuplicateEmail is returned by Create when the email is taken.
var ErrDuplicateEmail = fmt.Errorf("%w: duplicate email", goContacts.ErrAccountExists)

// Users implements goContacts.UserStore.
type Users struct {
	mu    sync.RWMutex
	byKey map[string]*session.Principal
	seq   int64
	now   func() time.Time
}

func NewUsers() *Users {
	return &Users{byKey: map[string]*session.Principal{}, now: time.Now}
}

func (u *Users) FindByEmail(ctx context.Context, email string) (*session.Principal, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	p, ok := u.byKey[email]
	if !ok {
		return nil, session.ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (u *Users) Create(ctx context.Context, p *session.Principal) (*session.Principal, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byKey[p.Email]; ok {
		return nil, ErrDuplicateEmail
	}
	u.seq++
	stored := *p
	stored.ID = u.seq
	stored.CreatedAt = u.now().Unix()
	u.byKey[p.Email] = &stored
	cp := stored
	return &cp, nil
}

func (u *Users) UpdateRefreshToken(ctx context.Context, userID int64, token string) error {
	return u.mutateByID(userID, func(p *session.Principal) { p.RefreshToken = token })
}

// RotateRefreshToken swaps current for next while holding the write lock.
func (u *Users) RotateRefreshToken(ctx context.Context, userID int64, current, next string) (bool, error) {
	rotated := false
	err := u.mutateByID(userID, func(p *session.Principal) {
		if current != "" && p.RefreshToken == current {
			p.RefreshToken = next
			rotated = true
		}
	})
	return rotated, err
}

func (u *Users) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	return u.mutateByID(userID, func(p *session.Principal) { p.PasswordHash = hash })
}

func (u *Users) ConfirmEmail(ctx context.Context, email string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.byKey[email]
	if !ok {
		return session.ErrPrincipalNotFound
	}
	p.Confirmed = true
	return nil
}

func (u *Users) UpdateAvatar(ctx context.Context, email, url string) (*session.Principal, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.byKey[email]
	if !ok {
		return nil, session.ErrPrincipalNotFound
	}
	p.Avatar = url
	cp := *p
	return &cp, nil
}

func (u *Users) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (u *Users) mutateByID(id int64, fn func(*session.Principal)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.byKey {
		if p.ID == id {
			fn(p)
			return nil
		}
	}
	return session.ErrPrincipalNotFound
}

// Contacts implements goContacts.ContactStore.
type Contacts struct {
	mu   sync.RWMutex
	rows map[int64]*goContacts.Contact
	seq  int64
	now  func() time.Time
}

func NewContacts() *Contacts {
	return &Contacts{rows: map[int64]*goContacts.Contact{}, now: time.Now}
}

// owned returns copies of userID's contacts ordered by id.
func (c *Contacts) owned(userID int64, keep func(*goContacts.Contact) bool) []goContacts.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]goContacts.Contact, 0)
	for _, row := range c.rows {
		if row.UserID == userID && (keep == nil || keep(row)) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Contacts) List(ctx context.Context, userID int64, limit, offset int) ([]goContacts.Contact, error) {
	all := c.owned(userID, nil)
	if offset >= len(all) {
		return []goContacts.Contact{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (c *Contacts) ListAll(ctx context.Context, userID int64) ([]goContacts.Contact, error) {
	return c.owned(userID, nil), nil
}

func (c *Contacts) Get(ctx context.Context, userID, contactID int64) (*goContacts.Contact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.rows[contactID]
	if !ok || row.UserID != userID {
		return nil, goContacts.ErrContactNotFound
	}
	cp := *row
	return &cp, nil
}

func (c *Contacts) FindByName(ctx context.Context, userID int64, name string) ([]goContacts.Contact, error) {
	return c.owned(userID, func(row *goContacts.Contact) bool { return row.Name == name }), nil
}

func (c *Contacts) FindBySurname(ctx context.Context, userID int64, surname string) ([]goContacts.Contact, error) {
	return c.owned(userID, func(row *goContacts.Contact) bool { return row.Surname == surname }), nil
}

func (c *Contacts) FindByEmail(ctx context.Context, userID int64, email string) (*goContacts.Contact, error) {
	rows := c.owned(userID, func(row *goContacts.Contact) bool { return row.Email == email })
	if len(rows) == 0 {
		return nil, goContacts.ErrContactNotFound
	}
	return &rows[0], nil
}

func (c *Contacts) Create(ctx context.Context, userID int64, in goContacts.ContactInput) (*goContacts.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	now := c.now().UTC()
	row := &goContacts.Contact{ID: c.seq, UserID: userID, CreatedAt: now, UpdatedAt: now}
	apply(row, in)
	c.rows[row.ID] = row
	cp := *row
	return &cp, nil
}

func (c *Contacts) Update(ctx context.Context, userID, contactID int64, in goContacts.ContactInput) (*goContacts.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[contactID]
	if !ok || row.UserID != userID {
		return nil, goContacts.ErrContactNotFound
	}
	apply(row, in)
	row.UpdatedAt = c.now().UTC()
	cp := *row
	return &cp, nil
}

func (c *Contacts) Delete(ctx context.Context, userID, contactID int64) (*goContacts.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[contactID]
	if !ok || row.UserID != userID {
		return nil, goContacts.ErrContactNotFound
	}
	delete(c.rows, contactID)
	return row, nil
}

func apply(row *goContacts.Contact, in goContacts.ContactInput) {
	row.Name = in.Name
	row.Surname = in.Surname
	row.Email = in.Email
	row.Phone = in.Phone
	row.Birthday = in.Birthday
	row.Description = in.Description
}
