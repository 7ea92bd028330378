package goContacts

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/goContacts/session"
)

// UserStore persists accounts. FindByEmail returns
// [session.ErrPrincipalNotFound] for unknown emails and Create returns an
// error wrapping [ErrAccountExists] for a taken email.
//
// RotateRefreshToken stores next only while current is still the stored
// token, atomically with that check, and reports whether it did.
type UserStore interface {
	session.PrincipalFinder
	Create(ctx context.Context, p *session.Principal) (*session.Principal, error)
	UpdateRefreshToken(ctx context.Context, userID int64, token string) error
	RotateRefreshToken(ctx context.Context, userID int64, current, next string) (bool, error)
	ConfirmEmail(ctx context.Context, email string) error
	UpdateAvatar(ctx context.Context, email, url string) (*session.Principal, error)
	Ping(ctx context.Context) error
}

// ContactStore persists contacts. Every method is scoped by the owning user.
// Get, FindByEmail, Update and Delete return [ErrContactNotFound] when no
// contact of that user matches.
type ContactStore interface {
	List(ctx context.Context, userID int64, limit, offset int) ([]Contact, error)
	ListAll(ctx context.Context, userID int64) ([]Contact, error)
	Get(ctx context.Context, userID, contactID int64) (*Contact, error)
	FindByName(ctx context.Context, userID int64, name string) ([]Contact, error)
	FindBySurname(ctx context.Context, userID int64, surname string) ([]Contact, error)
	FindByEmail(ctx context.Context, userID int64, email string) (*Contact, error)
	Create(ctx context.Context, userID int64, in ContactInput) (*Contact, error)
	Update(ctx context.Context, userID, contactID int64, in ContactInput) (*Contact, error)
	Delete(ctx context.Context, userID, contactID int64) (*Contact, error)
}

// AvatarStore uploads an image under key, overwriting any previous object,
// and returns its public URL.
type AvatarStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// ConfirmationMessage is everything a [Mailer] needs to send a
// confirmation link.
type ConfirmationMessage struct {
	Email    string
	Username string
	Token    string
}

// Mailer delivers confirmation emails.
type Mailer interface {
	SendConfirmation(ctx context.Context, msg ConfirmationMessage) error
}

// SignupRequest carries the fields of a new account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenPair(access, refresh string) TokenPair {
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
}

// Contact is one stored contact record.
type Contact struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Birthday    Date      `json:"birthday"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContactInput is the writable part of a [Contact].
type ContactInput struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Birthday    Date   `json:"birthday"`
	Description string `json:"description"`
}
