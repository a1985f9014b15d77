package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

// sealedPrefix marks payloads produced by Encrypt. Anything else is treated
// as a fernet token from a retired key.
const sealedPrefix = "v1."

var ErrDecrypt = errors.New("failed to decrypt message payload")

// Encryptor seals chat message content at rest with AES-256-GCM.
type Encryptor struct {
	aead   cipher.AEAD
	legacy legacyKeyring
}

// NewEncryptor derives the AES key from secret with SHA-256, so any
// non-empty secret works. legacyKeys are fernet keys that were used before;
// entries that do not parse are skipped.
func NewEncryptor(secret []byte, legacyKeys []string) (*Encryptor, error) {
	if len(secret) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	// The current secret counts as a legacy key too when it is fernet-encoded.
	ring := newLegacyKeyring(append([]string{string(secret)}, legacyKeys...))
	return &Encryptor{aead: aead, legacy: ring}, nil
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(payload string) (string, error) {
	if body, ok := strings.CutPrefix(payload, sealedPrefix); ok {
		return e.open(body)
	}
	if plain, ok := e.legacy.open(payload); ok {
		return plain, nil
	}
	return "", ErrDecrypt
}

func (e *Encryptor) open(body string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) < e.aead.NonceSize() {
		return "", ErrDecrypt
	}
	n := e.aead.NonceSize()
	plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

type legacyKeyring []*fernet.Key

func newLegacyKeyring(raw []string) legacyKeyring {
	var ring legacyKeyring
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if k, err := fernet.DecodeKey(r); err == nil {
			ring = append(ring, k)
		}
	}
	return ring
}

// open accepts tokens of any age.
func (r legacyKeyring) open(token string) (string, bool) {
	if len(r) == 0 {
		return "", false
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, r)
	if plain == nil {
		return "", false
	}
	return string(plain), true
}
