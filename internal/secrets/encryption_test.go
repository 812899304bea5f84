package secrets

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	key2, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, bytes.Equal(key, key2), "two generated keys must not collide")
}

func TestLoadOrGenerateKey_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")

	key1, err := LoadOrGenerateKey(keyPath)
	require.NoError(t, err)
	assert.Len(t, key1, 32)

	key2, err := LoadOrGenerateKey(keyPath)
	require.NoError(t, err)
	assert.Equal(t, key1, key2, "a second call must reuse the persisted key, not generate a new one")
}

func TestLoadOrGenerateKey_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")

	envKey, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv("OJOAGENT_MASTER_KEY", base64.StdEncoding.EncodeToString(envKey))

	got, err := LoadOrGenerateKey(keyPath)
	require.NoError(t, err)
	assert.Equal(t, envKey, got)

	_, err = os.Stat(keyPath)
	assert.True(t, os.IsNotExist(err), "the env var path must not fall through to file generation")
}

func TestLoadOrGenerateKey_RejectsBadEnvKey(t *testing.T) {
	t.Setenv("OJOAGENT_MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("too-short")))
	_, err := LoadOrGenerateKey(filepath.Join(t.TempDir(), "master.key"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewEncryptor_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
		wantErr bool
	}{
		{name: "valid 32-byte key", keySize: 32, wantErr: false},
		{name: "too short 16-byte key", keySize: 16, wantErr: true},
		{name: "too short 24-byte key", keySize: 24, wantErr: true},
		{name: "too long 64-byte key", keySize: 64, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(make([]byte, tt.keySize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)

	plaintexts := []string{
		"a-judge-session-token",
		"",
		"unicode: 你好世界",
		string(make([]byte, 4096)), // large payload
	}

	for _, pt := range plaintexts {
		ciphertext, err := enc.EncryptString(pt)
		require.NoError(t, err)
		got, err := enc.DecryptString(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
}

func TestEncryptor_EmptyStringNeverAllocatesNonce(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)
}

func TestEncryptor_DistinctCiphertextsForSamePlaintext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)

	a, err := enc.EncryptString("repeated-secret")
	require.NoError(t, err)
	b, err := enc.EncryptString("repeated-secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce reuse would be a critical bug")
}

func TestEncryptor_TamperedCiphertextFailsVerification(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("sensitive-token"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = enc.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncryptor_ShortCiphertextRejected(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptor(key)
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncryptor_WrongKeyCannotDecrypt(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	enc1, err := NewEncryptor(key1)
	require.NoError(t, err)
	enc2, err := NewEncryptor(key2)
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt([]byte("cross-key-test"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
