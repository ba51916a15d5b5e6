package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Plaintext(t *testing.T) {
	v, err := Resolve(NewNoOpSecretProvider(), "sk-plain")
	require.NoError(t, err)
	assert.Equal(t, "sk-plain", v)
}

func TestResolve_Encrypted(t *testing.T) {
	sp, err := NewSecretProvider("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	sealed, err := Seal(sp, "sk-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, EncryptedPrefix))
	assert.NotContains(t, sealed, "sk-secret")

	v, err := Resolve(sp, sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", v)
}

func TestResolve_EncryptedWithoutKey(t *testing.T) {
	_, err := Resolve(NewNoOpSecretProvider(), EncryptedPrefix+"AAAA")
	assert.Error(t, err)
}

func TestResolve_WrongKey(t *testing.T) {
	sp1, err := NewSecretProvider("first-master-key")
	require.NoError(t, err)
	sp2, err := NewSecretProvider("second-master-key")
	require.NoError(t, err)

	sealed, err := Seal(sp1, "sk-secret")
	require.NoError(t, err)

	_, err = Resolve(sp2, sealed)
	assert.Error(t, err)
}

func TestAESSecretProvider_Decrypt_Garbage(t *testing.T) {
	sp, err := NewAESSecretProvider("0123456789abcdef")
	require.NoError(t, err)

	_, err = sp.Decrypt("not base64!")
	assert.Error(t, err)

	_, err = sp.Decrypt("AAAA")
	assert.Error(t, err)
}
