package session

// Principal is the authenticated identity resolved from an access token.
//
// Empty RefreshToken and Avatar mean "none". CreatedAt is unix seconds.
type Principal struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RefreshToken string
	Avatar       string
	Confirmed    bool
	CreatedAt    int64
}

// Snapshot returns the projection that may be cached and handed to request
// handlers. The refresh token is a bearer secret and never leaves the store.
func (p *Principal) Snapshot() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.RefreshToken = ""
	return &out
}
