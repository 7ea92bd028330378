package goContacts

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goContacts/internal/rate"
	"github.com/MrEthical07/goContacts/jwt"
	"github.com/MrEthical07/goContacts/session"
)

var (
	// ErrUnauthenticated is the single answer for any unusable access token.
	ErrUnauthenticated = session.ErrUnauthenticated
	// ErrUserStoreUnavailable reports a persistent store failure.
	ErrUserStoreUnavailable = session.ErrUserStoreUnavailable

	// ErrInvalidCredentials is the parent of every login credential failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownEmail is returned by Login when no account has the email.
	ErrUnknownEmail = fmt.Errorf("%w: invalid email", ErrInvalidCredentials)
	// ErrWrongPassword is returned by Login when the password does not match.
	ErrWrongPassword = fmt.Errorf("%w: invalid password", ErrInvalidCredentials)
	// ErrEmailNotConfirmed is returned by Login for unconfirmed accounts.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	ErrAccountExists         = errors.New("account already exists")
	ErrEmailAlreadyConfirmed = errors.New("your email is already confirmed")
	ErrRefreshInvalid        = errors.New("invalid refresh token")

	// ErrEmailTokenInvalid means the token was readable but names no account.
	ErrEmailTokenInvalid = errors.New("verification error")
	// ErrEmailTokenUnprocessable means the token itself was rejected.
	ErrEmailTokenUnprocessable = jwt.ErrUnprocessableToken

	ErrContactNotFound = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = rate.ErrRateLimited

	ErrAvatarUploadFailed = errors.New("avatar upload failed")
	ErrEngineNotReady     = errors.New("engine not ready")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
