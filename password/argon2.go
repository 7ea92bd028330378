package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

const (
	argonMinMemoryKB   uint32 = 8 * 1024
	argonMinTime       uint32 = 1
	argonMinThreads    uint8  = 1
	argonMinSaltLength uint32 = 16
	argonMinKeyLength  uint32 = 16
)

// Argon2Config holds Argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used for new hashes.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the supported floor.
func (c Argon2Config) Validate() error {
	switch {
	case c.Memory < argonMinMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", argonMinMemoryKB)
	case c.Time < argonMinTime:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < argonMinThreads:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < argonMinSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", argonMinSaltLength)
	case c.KeyLength < argonMinKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", argonMinKeyLength)
	}
	return nil
}

// Argon2 is the default [Hasher].
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns a hasher using it.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a fresh salted hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	if err := CheckLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	phc := argonPHC{
		memory:  a.cfg.Memory,
		time:    a.cfg.Time,
		threads: a.cfg.Parallelism,
		salt:    salt,
		key:     key,
	}
	return phc.String(), nil
}

// Verify recomputes the key with the parameters stored in encoded.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > MaxLength {
		return false, ErrTooLong
	}
	phc, err := parseArgonPHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), phc.salt, phc.time, phc.memory, phc.threads, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(key, phc.key) == 1, nil
}

// NeedsUpgrade reports whether encoded is weaker than the configured cost.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	phc, err := parseArgonPHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := phc.memory < a.cfg.Memory ||
		phc.time < a.cfg.Time ||
		phc.threads < a.cfg.Parallelism ||
		uint32(len(phc.key)) != a.cfg.KeyLength
	return weaker, nil
}

// Recognizes implements [Hasher].
func (a *Argon2) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

type argonPHC struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p argonPHC) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

// parseArgonPHC accepts both padded and unpadded base64 segments.
func parseArgonPHC(encoded string) (argonPHC, error) {
	var phc argonPHC

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phc, ErrUnsupportedHash
	}

	version, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return phc, errors.New("argon2: missing version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return phc, errors.New("argon2: unsupported version")
	}

	if err := phc.parseParams(fields[3]); err != nil {
		return phc, err
	}

	var err error
	if phc.salt, err = decodeB64(fields[4]); err != nil || len(phc.salt) < int(argonMinSaltLength) {
		return phc, errors.New("argon2: invalid salt")
	}
	if phc.key, err = decodeB64(fields[5]); err != nil || len(phc.key) == 0 {
		return phc, errors.New("argon2: invalid key")
	}
	return phc, nil
}

func (p *argonPHC) parseParams(segment string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(segment, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return errors.New("argon2: invalid parameters")
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < argonMinMemoryKB {
				return errors.New("argon2: invalid memory parameter")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < argonMinTime {
				return errors.New("argon2: invalid time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < argonMinThreads {
				return errors.New("argon2: invalid parallelism parameter")
			}
			p.threads = uint8(v)
		default:
			return errors.New("argon2: unknown parameter")
		}
	}
	if len(seen) != 3 {
		return errors.New("argon2: missing parameters")
	}
	return nil
}

func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
