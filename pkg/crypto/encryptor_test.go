package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_GenerateNewKey(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.NotNil(t, enc.identity)
	assert.NotNil(t, enc.recipient)
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	_, err := NewEncryptor("invalid-key-format")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.Contains(t, key1, "AGE-SECRET-KEY-")
}

func TestEncrypt_Decrypt(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := []byte("verification link for a@x.com")

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor("")
	require.NoError(t, err)
	enc2, err := NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt([]byte("secret message"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err, "Should not be able to decrypt with wrong key")
}

func TestEncryptor_KeyReuse(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	// Server and worker build their encryptors from the same key
	server, err := NewEncryptor(key)
	require.NoError(t, err)
	worker, err := NewEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := server.Encrypt([]byte("queued"))
	require.NoError(t, err)

	decrypted, err := worker.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("queued"), decrypted)
}

func TestSealJSON_OpenJSON(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	type payload struct {
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	}

	sealed, err := enc.SealJSON(payload{To: []string{"a@x.com"}, Subject: "Hi"})
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "a@x.com")

	var out payload
	require.NoError(t, enc.OpenJSON(sealed, &out))
	assert.Equal(t, []string{"a@x.com"}, out.To)
	assert.Equal(t, "Hi", out.Subject)
}

func TestOpenJSON_Garbage(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	var out map[string]string
	assert.Error(t, enc.OpenJSON([]byte("not valid ciphertext"), &out))
}

func TestGenerateRandomString(t *testing.T) {
	for _, size := range []int{8, 16, 32, 64} {
		str, err := GenerateRandomString(size)
		require.NoError(t, err)
		assert.Len(t, str, size)
	}

	a, err := GenerateRandomString(32)
	require.NoError(t, err)
	b, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
