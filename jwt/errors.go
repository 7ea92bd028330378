package jwt

import "errors"

var (
	// ErrInvalidSignatureOrFormat reports a token that cannot be decoded, has
	// a bad signature or is expired.
	ErrInvalidSignatureOrFormat = errors.New("could not validate credentials")
	// ErrInvalidScope reports a well-formed token minted for another purpose.
	ErrInvalidScope = errors.New("invalid scope for token")
	// ErrInvalidCredentials reports any access-token validation failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnprocessableToken reports an unusable email-confirmation token.
	ErrUnprocessableToken = errors.New("invalid token for email verification")
)
