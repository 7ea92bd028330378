package password

import (
	"errors"
	"fmt"
)

const (
	// MinLength is the shortest accepted password, in bytes.
	MinLength = 6
	// MaxLength is the longest accepted password, in bytes. It matches the
	// bcrypt input limit so both hashers accept the same inputs.
	MaxLength = 72
)

var (
	// ErrTooShort is returned for passwords under [MinLength] bytes.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinLength)
	// ErrTooLong is returned for passwords over [MaxLength] bytes.
	ErrTooLong = fmt.Errorf("password must be at most %d bytes", MaxLength)
	// ErrUnsupportedHash is returned when no hasher recognizes a stored hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Hasher produces and checks encoded password hashes.
//
// Verify returns (false, nil) for a wrong password and a non-nil error only
// for malformed hashes or out-of-bounds input.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
	// Recognizes reports whether encoded was produced by this hasher family.
	Recognizes(encoded string) bool
}

// CheckLength enforces [MinLength] and [MaxLength]. Lengths are raw bytes,
// with no Unicode normalization.
func CheckLength(password string) error {
	switch {
	case len(password) < MinLength:
		return ErrTooShort
	case len(password) > MaxLength:
		return ErrTooLong
	}
	return nil
}
