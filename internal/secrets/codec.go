package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedPrefix marks a value produced by Codec.Encrypt.
const SealedPrefix = "enc:v1:"

var ErrNotSealed = errors.New("value is not sealed")

// KeySource provides the 32-byte symmetric key used to seal secrets.
type KeySource interface {
	EncryptionKey() ([]byte, error)
}

// DecryptError reports a secret field that could not be opened.
type DecryptError struct {
	Field string
	Err   error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("cannot decrypt %s: %v", e.Field, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}

// Codec seals and opens secret settings with XChaCha20-Poly1305. The field
// name is bound as additional data so sealed values cannot be swapped.
type Codec struct {
	keys KeySource

	mu   sync.Mutex
	aead cipher.AEAD
}

func NewCodec(keys KeySource) *Codec {
	return &Codec{keys: keys}
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

func (c *Codec) Encrypt(field, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := c.cipher()
	if err != nil {
		return "", fmt.Errorf("encrypt %s: %w", field, err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encrypt %s: generate nonce: %w", field, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(field))
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(field, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !IsSealed(ciphertext) {
		return "", ErrNotSealed
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, SealedPrefix))
	if err != nil {
		return "", &DecryptError{Field: field, Err: fmt.Errorf("decode: %w", err)}
	}
	aead, err := c.cipher()
	if err != nil {
		return "", &DecryptError{Field: field, Err: err}
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", &DecryptError{Field: field, Err: errors.New("ciphertext too short")}
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(field))
	if err != nil {
		return "", &DecryptError{Field: field, Err: err}
	}
	return string(plain), nil
}

// cipher loads the key lazily so a missing keyring only affects secret fields.
// A failed key lookup is retried on the next call.
func (c *Codec) cipher() (cipher.AEAD, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aead != nil {
		return c.aead, nil
	}
	if c.keys == nil {
		return nil, errors.New("no encryption key source configured")
	}

	key, err := c.keys.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	c.aead = aead
	return aead, nil
}
