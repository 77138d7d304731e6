package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// FieldKeyHexLen is the required length of the hex-encoded field encryption
// key (32 bytes of key material).
const FieldKeyHexLen = 64

var (
	ErrBadFieldKey   = errors.New("cryptox: field key must be 64 hex characters")
	ErrFieldTampered = errors.New("cryptox: field ciphertext failed authentication")
)

// EncryptedField is one encrypted database column value. The IV and the GCM
// authentication tag are stored alongside the ciphertext, hex-encoded, so a
// row is self-contained apart from the process-wide key.
type EncryptedField struct {
	Ciphertext string
	IV         string
	Tag        string
}

// IsZero reports whether no value was encrypted (optional fields).
func (f EncryptedField) IsZero() bool {
	return f.Ciphertext == "" && f.IV == "" && f.Tag == ""
}

// FieldCipher encrypts and decrypts individual audit-log fields with
// AES-256-GCM. Construct one at startup from configuration and pass it down;
// there is deliberately no package-level key state.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher validates the hex key and builds the AEAD. The key is
// process-wide configuration, never per-record.
func NewFieldCipher(keyHex string) (*FieldCipher, error) {
	if len(keyHex) != FieldKeyHexLen {
		return nil, ErrBadFieldKey
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, ErrBadFieldKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals a single plaintext field under a fresh random IV.
func (c *FieldCipher) Encrypt(plaintext string) (EncryptedField, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedField{}, fmt.Errorf("cryptox: generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	tagAt := len(sealed) - c.aead.Overhead()

	return EncryptedField{
		Ciphertext: hex.EncodeToString(sealed[:tagAt]),
		IV:         hex.EncodeToString(iv),
		Tag:        hex.EncodeToString(sealed[tagAt:]),
	}, nil
}

// Decrypt recombines ciphertext and tag and opens the field. A tampered
// ciphertext, tag or IV yields ErrFieldTampered.
func (c *FieldCipher) Decrypt(f EncryptedField) (string, error) {
	ciphertext, err := hex.DecodeString(f.Ciphertext)
	if err != nil {
		return "", ErrFieldTampered
	}
	iv, err := hex.DecodeString(f.IV)
	if err != nil || len(iv) != c.aead.NonceSize() {
		return "", ErrFieldTampered
	}
	tag, err := hex.DecodeString(f.Tag)
	if err != nil || len(tag) != c.aead.Overhead() {
		return "", ErrFieldTampered
	}

	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrFieldTampered
	}
	return string(plaintext), nil
}
