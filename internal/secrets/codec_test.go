package secrets

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKey struct {
	key []byte
	err error
}

func (s staticKey) EncryptionKey() ([]byte, error) {
	return s.key, s.err
}

func newTestCodec(fill byte) *Codec {
	return NewCodec(staticKey{key: bytes.Repeat([]byte{fill}, 32)})
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(7)

	sealed, err := codec.Encrypt("openai_api_key", "sk-test-1234567890")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "sk-test-1234567890")

	plain, err := codec.Decrypt("openai_api_key", sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", plain)
}

func TestCodec_EmptyStaysEmpty(t *testing.T) {
	codec := NewCodec(nil)

	sealed, err := codec.Encrypt("google_api_key", "")
	require.NoError(t, err)
	assert.Equal(t, "", sealed)

	plain, err := codec.Decrypt("google_api_key", "")
	require.NoError(t, err)
	assert.Equal(t, "", plain)
}

func TestCodec_NonceMakesCiphertextUnique(t *testing.T) {
	codec := newTestCodec(1)

	a, err := codec.Encrypt("openai_api_key", "sk-same")
	require.NoError(t, err)
	b, err := codec.Encrypt("openai_api_key", "sk-same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodec_FieldIsBound(t *testing.T) {
	codec := newTestCodec(2)

	sealed, err := codec.Encrypt("openai_api_key", "sk-abc")
	require.NoError(t, err)

	_, err = codec.Decrypt("google_api_key", sealed)
	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "google_api_key", decErr.Field)
}

func TestCodec_WrongKey(t *testing.T) {
	sealed, err := newTestCodec(3).Encrypt("anthropic_api_key", "sk-ant-xyz")
	require.NoError(t, err)

	_, err = newTestCodec(4).Decrypt("anthropic_api_key", sealed)
	var decErr *DecryptError
	assert.ErrorAs(t, err, &decErr)
}

func TestCodec_CorruptedValues(t *testing.T) {
	codec := newTestCodec(5)

	cases := map[string]string{
		"bad base64": SealedPrefix + "%%%",
		"too short":  SealedPrefix + "AAAA",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decrypt("openai_api_key", value)
			var decErr *DecryptError
			assert.ErrorAs(t, err, &decErr)
		})
	}

	sealed, err := codec.Encrypt("openai_api_key", "sk-tamper")
	require.NoError(t, err)
	tampered := sealed[:len(sealed)-4] + strings.Repeat("A", 4)
	if tampered == sealed {
		tampered = sealed[:len(sealed)-4] + "BBBB"
	}
	_, err = codec.Decrypt("openai_api_key", tampered)
	var decErr *DecryptError
	assert.ErrorAs(t, err, &decErr)
}

func TestCodec_MissingKey(t *testing.T) {
	codec := NewCodec(staticKey{err: errors.New("keyring locked")})

	_, err := codec.Encrypt("openai_api_key", "sk-1")
	assert.ErrorContains(t, err, "keyring locked")

	_, err = codec.Decrypt("openai_api_key", SealedPrefix+"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	var decErr *DecryptError
	assert.ErrorAs(t, err, &decErr)
}

func TestCodec_PlaintextIsNotSealed(t *testing.T) {
	_, err := newTestCodec(6).Decrypt("openai_api_key", "sk-legacy-plain")
	assert.ErrorIs(t, err, ErrNotSealed)
}
