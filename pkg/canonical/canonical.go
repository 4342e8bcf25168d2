// Package canonical derives stable identifiers from canonicalized byte
// encodings of their inputs.
//
// Encoding rules:
//   - values are marshalled with encoding/json and then canonicalized per
//     RFC 8785 (JCS): object keys sorted by UTF-16 code units, no insignificant
//     whitespace, ECMAScript number formatting;
//   - field order in the source struct is therefore irrelevant, only field
//     names and values participate;
//   - the digest is xxHash64 over the canonical bytes, rendered as 16
//     lower-case hex digits in big-endian byte order.
package canonical

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gowebpki/jcs"
)

// Bytes returns the RFC 8785 canonical JSON encoding of v.
func Bytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform: %w", err)
	}
	return out, nil
}

// Hash64 returns the stable 64-bit content hash of v.
func Hash64(v any) (uint64, error) {
	b, err := Bytes(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// Digest renders h big-endian as 16 hex digits.
func Digest(h uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:])
}

// ID returns prefix + "-" + Digest(Hash64(v)).
func ID(prefix string, v any) (string, error) {
	h, err := Hash64(v)
	if err != nil {
		return "", err
	}
	return prefix + "-" + Digest(h), nil
}
