package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	principalFormatVersionCurrent = 1

	flagConfirmed byte = 1 << 0
)

// CurrentSchemaVersion is the format version written by Encode.
const CurrentSchemaVersion = principalFormatVersionCurrent

// Encode serializes p into the compact cache format:
//
//	version | id(int64) | flags | username | email | password_hash |
//	refresh_token | avatar | created_at(int64)
//
// Strings are prefixed with a big-endian uint16 length.
func Encode(p *Principal) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil principal")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(p.Username) + len(p.Email) + len(p.PasswordHash) + len(p.RefreshToken) + len(p.Avatar))

	buf.WriteByte(principalFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, p.ID); err != nil {
		return nil, err
	}

	var flags byte
	if p.Confirmed {
		flags |= flagConfirmed
	}
	buf.WriteByte(flags)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"username", p.Username},
		{"email", p.Email},
		{"password hash", p.PasswordHash},
		{"refresh token", p.RefreshToken},
		{"avatar", p.Avatar},
	} {
		if err := writeString(&buf, field.name, field.value); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, p.CreatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Principal, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != principalFormatVersionCurrent {
		return nil, fmt.Errorf("unsupported principal schema version %d", version)
	}

	p := &Principal{}
	if err := binary.Read(reader, binary.BigEndian, &p.ID); err != nil {
		return nil, err
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	p.Confirmed = flags&flagConfirmed != 0

	for _, dst := range []*string{&p.Username, &p.Email, &p.PasswordHash, &p.RefreshToken, &p.Avatar} {
		s, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*dst = s
	}

	if err := binary.Read(reader, binary.BigEndian, &p.CreatedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after principal")
	}

	return p, nil
}

func writeString(buf *bytes.Buffer, name, value string) error {
	if len(value) > math.MaxUint16 {
		return fmt.Errorf("%s too long", name)
	}
	var size [2]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(value)))
	buf.Write(size[:])
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if int(size) > reader.Len() {
		return "", io.ErrUnexpectedEOF
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
