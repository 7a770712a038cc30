package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var errOpen = errors.New("secret cannot be decrypted with any configured key")

// EncryptionService seals webhook signing secrets at rest with AES-GCM. The
// row id is passed as associated data, so a sealed value only opens for the
// row it was written to.
//
// Seal always uses the first key. Open also tries the retired keys, which
// lets an operator rotate security.encryption_key without a data migration.
type EncryptionService struct {
	keys []cipher.AEAD
}

func NewEncryptionService(key string, retired ...string) (*EncryptionService, error) {
	svc := &EncryptionService{}
	for i, k := range append([]string{key}, retired...) {
		aead, err := newAEAD(k)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("retired key %d: %w", i, err)
		}
		svc.keys = append(svc.keys, aead)
	}
	return svc, nil
}

func newAEAD(key string) (cipher.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal returns base64(nonce || ciphertext).
func (e *EncryptionService) Seal(plaintext, associated string) (string, error) {
	aead := e.keys[0]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *EncryptionService) Open(sealed, associated string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	for _, aead := range e.keys {
		ns := aead.NonceSize()
		if len(raw) < ns+aead.Overhead() {
			continue
		}
		if pt, err := aead.Open(nil, raw[:ns], raw[ns:], []byte(associated)); err == nil {
			return string(pt), nil
		}
	}
	return "", errOpen
}

// PlainSecrets stores secrets as-is. Dev mode only.
type PlainSecrets struct{}

func (PlainSecrets) Seal(plaintext, _ string) (string, error) { return plaintext, nil }
func (PlainSecrets) Open(sealed, _ string) (string, error)    { return sealed, nil }
