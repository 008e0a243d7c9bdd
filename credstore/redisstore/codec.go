package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
)

const (
	codeRecordV1     = 1
	passwordRecordV1 = 1
)

var errCorruptRecord = errors.New("redisstore: corrupt record")

func encodeCode(c credstore.OneTimeCode) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordV1)
	buf.Write(c.Version[:])
	if err := binary.Write(&buf, binary.BigEndian, uint32(c.FailedAttempts)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(c.IssuedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(c.ExpiresAt)); err != nil {
		return nil, err
	}
	buf.Write(c.ShortCodeHash[:])
	buf.Write(c.LongCodeHash[:])
	if err := writeString(&buf, c.Recipient); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.RedirectURL); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeCode(data []byte) (credstore.OneTimeCode, error) {
	var c credstore.OneTimeCode
	r := bytes.NewReader(data)

	v, err := r.ReadByte()
	if err != nil {
		return c, errCorruptRecord
	}
	if v != codeRecordV1 {
		return c, errors.New("redisstore: unknown code record version")
	}
	if _, err := io.ReadFull(r, c.Version[:]); err != nil {
		return c, errCorruptRecord
	}

	var attempts uint32
	var issued, expires int64
	if err := binary.Read(r, binary.BigEndian, &attempts); err != nil {
		return c, errCorruptRecord
	}
	if err := binary.Read(r, binary.BigEndian, &issued); err != nil {
		return c, errCorruptRecord
	}
	if err := binary.Read(r, binary.BigEndian, &expires); err != nil {
		return c, errCorruptRecord
	}
	c.FailedAttempts = int(attempts)
	c.IssuedAt = fromUnixNano(issued)
	c.ExpiresAt = fromUnixNano(expires)

	if _, err := io.ReadFull(r, c.ShortCodeHash[:]); err != nil {
		return c, errCorruptRecord
	}
	if _, err := io.ReadFull(r, c.LongCodeHash[:]); err != nil {
		return c, errCorruptRecord
	}
	if c.Recipient, err = readString(r); err != nil {
		return c, err
	}
	if c.RedirectURL, err = readString(r); err != nil {
		return c, err
	}

	return c, nil
}

func encodePassword(p credstore.PasswordCredential) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(passwordRecordV1)
	buf.Write(p.Version[:])
	if err := binary.Write(&buf, binary.BigEndian, uint32(p.FailedAttempts)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(p.LastChangedAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixNano(p.LockedUntil)); err != nil {
		return nil, err
	}
	if err := writeString(&buf, p.IdentityID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, p.Hash); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodePassword(data []byte) (credstore.PasswordCredential, error) {
	var p credstore.PasswordCredential
	r := bytes.NewReader(data)

	v, err := r.ReadByte()
	if err != nil {
		return p, errCorruptRecord
	}
	if v != passwordRecordV1 {
		return p, errors.New("redisstore: unknown password record version")
	}
	if _, err := io.ReadFull(r, p.Version[:]); err != nil {
		return p, errCorruptRecord
	}

	var attempts uint32
	var changed, locked int64
	if err := binary.Read(r, binary.BigEndian, &attempts); err != nil {
		return p, errCorruptRecord
	}
	if err := binary.Read(r, binary.BigEndian, &changed); err != nil {
		return p, errCorruptRecord
	}
	if err := binary.Read(r, binary.BigEndian, &locked); err != nil {
		return p, errCorruptRecord
	}
	p.FailedAttempts = int(attempts)
	p.LastChangedAt = fromUnixNano(changed)
	p.LockedUntil = fromUnixNano(locked)

	if p.IdentityID, err = readString(r); err != nil {
		return p, err
	}
	if p.Hash, err = readString(r); err != nil {
		return p, err
	}

	return p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("redisstore: field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", errCorruptRecord
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errCorruptRecord
	}
	return string(b), nil
}

// Zero times round-trip as 0 so an unset lock stays unset.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
