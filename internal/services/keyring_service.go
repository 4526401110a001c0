package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ErrKeyringPasswordRequired is returned instead of prompting on a terminal
// when the encrypted file backend is used without a configured passphrase.
var ErrKeyringPasswordRequired = errors.New("keyring file backend requires a password")

const (
	serviceName       = "kharazmi"
	encryptionKeyItem = "settings-encryption-key"
	encryptionKeySize = 32
)

// KeyringConfig selects where the settings encryption key lives.
type KeyringConfig struct {
	Backend  string // empty for the platform default, or "file", "keychain", "secret-service", "wincred", "kwallet", "pass", "keyctl"
	FileDir  string
	Password string // passphrase for the encrypted file backend
}

// OpenKeyring opens the OS keyring (or the encrypted file fallback) for kharazmi.
func OpenKeyring(cfg KeyringConfig) (keyring.Keyring, error) {
	kc := keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         missingPassword,
		LibSecretCollectionName:  serviceName,
		KWalletAppID:             serviceName,
		KWalletFolder:            serviceName,
	}
	if cfg.Password != "" {
		kc.FilePasswordFunc = keyring.FixedStringPrompt(cfg.Password)
	}

	backend := strings.TrimSpace(cfg.Backend)
	if backend == string(keyring.FileBackend) && cfg.Password == "" {
		return nil, ErrKeyringPasswordRequired
	}
	if backend != "" {
		kc.AllowedBackends = []keyring.BackendType{keyring.BackendType(backend)}
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ring, nil
}

func missingPassword(string) (string, error) {
	return "", ErrKeyringPasswordRequired
}

// KeyringService keeps the symmetric key that seals API keys in settings.json.
// The key is generated on first use and cached for the process lifetime.
type KeyringService struct {
	ring keyring.Keyring

	mu  sync.Mutex
	key []byte
}

func NewKeyringService(ring keyring.Keyring) *KeyringService {
	return &KeyringService{ring: ring}
}

func (s *KeyringService) EncryptionKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}
	if s.ring == nil {
		return nil, errors.New("keyring is not available")
	}

	item, err := s.ring.Get(encryptionKeyItem)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		key, genErr := s.generateLocked()
		if genErr != nil {
			return nil, genErr
		}
		s.key = key
		return key, nil
	case err != nil:
		return nil, fmt.Errorf("read encryption key: %w", err)
	}

	if len(item.Data) != encryptionKeySize {
		return nil, fmt.Errorf("encryption key has %d bytes, want %d", len(item.Data), encryptionKeySize)
	}
	s.key = item.Data
	return s.key, nil
}

// hasEncryptionKey reports whether a key was already provisioned.
func (s *KeyringService) hasEncryptionKey() bool {
	if s.ring == nil {
		return false
	}
	_, err := s.ring.Get(encryptionKeyItem)
	return err == nil
}

func (s *KeyringService) generateLocked() ([]byte, error) {
	key := make([]byte, encryptionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}

	err := s.ring.Set(keyring.Item{
		Key:         encryptionKeyItem,
		Data:        key,
		Label:       "Kharazmi settings encryption key",
		Description: "Seals API keys stored in settings.json",
	})
	if err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}
	return key, nil
}
