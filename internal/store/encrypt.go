package store

import (
	"encoding/base64"

	"github.com/duskrelay/edgecore/internal/util"
)

// Encryptor seals/opens individual column values with AES-256-GCM via
// internal/util.Encrypt/Decrypt, base64-encoding the result so it still
// fits a text column. Configured per-table per spec.md §4.12's "Encryption
// at rest is optional and configured per-table; when enabled, plaintext
// never crosses the storage boundary" — a nil Encryptor is a no-op, so
// callers that never enable encryption pay nothing.
type Encryptor struct {
	key []byte
}

// NewEncryptor builds an Encryptor with a 32-byte AES-256 key. Passing a
// nil key disables sealing: NewEncryptor returns a nil *Encryptor, whose
// Seal/Open are the identity function. The Engine hands store.New a nil
// *Encryptor when persistence.encryption_enabled is false.
func NewEncryptor(key []byte) *Encryptor {
	if len(key) == 0 {
		return nil
	}
	return &Encryptor{key: key}
}

// Seal encrypts plaintext if e is non-nil, returning it unchanged otherwise.
func (e *Encryptor) Seal(plaintext string) (string, error) {
	if e == nil || plaintext == "" {
		return plaintext, nil
	}
	sealed, err := util.Encrypt(e.key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (e *Encryptor) Open(stored string) (string, error) {
	if e == nil || stored == "" {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", err
	}
	plain, err := util.Decrypt(e.key, raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
