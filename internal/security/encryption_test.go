package security_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/security"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	enc, err := security.NewEncryptor(dir)
	require.NoError(t, err)

	sealed, err := enc.Seal([]byte("datos sensibles de usuarios"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "datos sensibles")

	opened, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "datos sensibles de usuarios", string(opened))
}

func TestEncryptor_KeyMaterialPersistsWithOwnerOnlyPerms(t *testing.T) {
	dir := t.TempDir()
	enc, err := security.NewEncryptor(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".encryption_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sealed, err := enc.Seal([]byte("persistencia"))
	require.NoError(t, err)

	// A second encryptor over the same dir reuses the key material.
	reopened, err := security.NewEncryptor(dir)
	require.NoError(t, err)
	opened, err := reopened.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "persistencia", string(opened))
}

func TestEncryptor_SealFileWritesOwnerOnlyBackup(t *testing.T) {
	dir := t.TempDir()
	enc, err := security.NewEncryptor(dir)
	require.NoError(t, err)

	src := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"admin":{"role":"admin"}}`), 0o644))

	dst := src + ".enc"
	require.NoError(t, enc.SealFile(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sealed, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "admin")

	opened, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"admin":{"role":"admin"}}`, string(opened))
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	enc, err := security.NewEncryptor(t.TempDir())
	require.NoError(t, err)

	sealed, err := enc.Seal([]byte("integridad"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = enc.Open(sealed)
	assert.Error(t, err)

	_, err = enc.Open([]byte("corto"))
	assert.ErrorIs(t, err, security.ErrCiphertextTooShort)
}
