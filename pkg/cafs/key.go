package cafs

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/paninifs/panini/pkg/errors"
)

const (
	// KeySize for blake2b-512
	KeySize = 64

	// KeySizeText is the length of the textual representation of a key
	KeySizeText = 86
)

var (
	// ErrBadKey is returned when some bytes or some text cannot be converted into a key
	ErrBadKey = errors.New("invalid content address")

	keyEncoding = base64.RawURLEncoding.Strict()
)

// Key type for content addresses
type Key [KeySize]byte

// NewKey creates a new key from raw hash bytes
func NewKey(data []byte) (Key, error) {
	var k Key
	if len(data) != KeySize {
		return Key{}, ErrBadKey.WrapMessage("%x has invalid size of %d, expected %d", data, len(data), KeySize)
	}
	copy(k[:], data)
	return k, nil
}

// MustNewKey creates a new key from data but panics if there is an error
func MustNewKey(data []byte) Key {
	k, e := NewKey(data)
	if e != nil {
		panic(e.Error())
	}
	return k
}

// ParseKey converts the textual form of a key back to a key
func ParseKey(text string) (Key, error) {
	if len(text) != KeySizeText {
		return Key{}, ErrBadKey.WrapMessage("%q has invalid length %d, expected %d", text, len(text), KeySizeText)
	}
	raw, err := keyEncoding.DecodeString(text)
	if err != nil {
		return Key{}, ErrBadKey.Wrap(err)
	}
	return NewKey(raw)
}

// String renders the key as a file name safe string
func (k Key) String() string {
	return keyEncoding.EncodeToString(k[:])
}

// Hex renders the key in hexadecimal, for display
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// IsZero tells if the key is unset
func (k Key) IsZero() bool {
	return k == Key{}
}

// MarshalText implements encoding.TextMarshaler
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
