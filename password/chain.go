package password

// Chain hashes with its primary hasher and verifies with whichever member
// recognizes the stored hash.
type Chain struct {
	primary Hasher
	legacy  []Hasher
}

// NewChain builds a Chain. primary must not be nil.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

// NewDefaultChain returns Argon2id with default cost, plus bcrypt verification.
func NewDefaultChain() *Chain {
	a, err := NewArgon2(DefaultArgon2Config())
	if err != nil {
		panic(err)
	}
	b, err := NewBcrypt(0)
	if err != nil {
		panic(err)
	}
	return NewChain(a, b)
}

// Hash implements [Hasher] using the primary hasher.
func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

// Verify implements [Hasher].
func (c *Chain) Verify(password, encoded string) (bool, error) {
	h := c.pick(encoded)
	if h == nil {
		return false, ErrUnsupportedHash
	}
	return h.Verify(password, encoded)
}

// NeedsUpgrade reports true for any hash not produced by the primary hasher,
// and defers to the primary otherwise.
func (c *Chain) NeedsUpgrade(encoded string) (bool, error) {
	if c.primary.Recognizes(encoded) {
		return c.primary.NeedsUpgrade(encoded)
	}
	if c.pick(encoded) == nil {
		return false, ErrUnsupportedHash
	}
	return true, nil
}

// Recognizes implements [Hasher].
func (c *Chain) Recognizes(encoded string) bool {
	return c.pick(encoded) != nil
}

func (c *Chain) pick(encoded string) Hasher {
	if c.primary.Recognizes(encoded) {
		return c.primary
	}
	for _, h := range c.legacy {
		if h.Recognizes(encoded) {
			return h
		}
	}
	return nil
}
