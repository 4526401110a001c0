package services

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringService_GeneratesAndPersistsKey(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	svc := NewKeyringService(ring)
	assert.False(t, svc.hasEncryptionKey())

	key, err := svc.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, encryptionKeySize)
	assert.True(t, svc.hasEncryptionKey())

	again, err := NewKeyringService(ring).EncryptionKey()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestKeyringService_RejectsMalformedKey(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: encryptionKeyItem, Data: []byte("short")}})

	_, err := NewKeyringService(ring).EncryptionKey()
	assert.ErrorContains(t, err, "encryption key has 5 bytes")
}

func TestKeyringService_NoKeyring(t *testing.T) {
	_, err := NewKeyringService(nil).EncryptionKey()
	assert.Error(t, err)
}

func TestOpenKeyring_FileBackend(t *testing.T) {
	dir := t.TempDir()
	ring, err := OpenKeyring(KeyringConfig{Backend: string(keyring.FileBackend), FileDir: dir, Password: "test-pass"})
	require.NoError(t, err)

	key, err := NewKeyringService(ring).EncryptionKey()
	require.NoError(t, err)

	reopened, err := OpenKeyring(KeyringConfig{Backend: string(keyring.FileBackend), FileDir: dir, Password: "test-pass"})
	require.NoError(t, err)
	again, err := NewKeyringService(reopened).EncryptionKey()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestOpenKeyring_FileBackendWithoutPassword(t *testing.T) {
	_, err := OpenKeyring(KeyringConfig{Backend: string(keyring.FileBackend), FileDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrKeyringPasswordRequired)
}

func TestOpenKeyring_MissingPasswordDoesNotPrompt(t *testing.T) {
	pass, err := missingPassword("Password for kharazmi")
	assert.Empty(t, pass)
	assert.ErrorIs(t, err, ErrKeyringPasswordRequired)
}
