package auth_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/auth"
)

func TestStore_SeedsDefaultUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := auth.NewStore(path)
	require.NoError(t, err)

	users := store.List()
	assert.Len(t, users, 4)
	assert.Equal(t, "admin", users["admin"].Role)
	assert.Equal(t, "invitado", users["demo"].Role)
	// Hashes never leave the store.
	for _, user := range users {
		assert.Empty(t, user.PasswordHash)
	}

	// A second open reads the same file instead of reseeding.
	again, err := auth.NewStore(path)
	require.NoError(t, err)
	assert.Len(t, again.List(), 4)
}

func TestStore_Authenticate(t *testing.T) {
	store, err := auth.NewStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	user, err := store.Authenticate("demo", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "invitado", user.Role)
	require.NotNil(t, user.LastLogin)

	_, err = store.Authenticate("demo", "incorrecta")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = store.Authenticate("nadie", "demo123")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	require.NoError(t, store.SetActive("demo", false))
	_, err = store.Authenticate("demo", "demo123")
	assert.ErrorIs(t, err, auth.ErrUserInactive)
}

func TestStore_Create(t *testing.T) {
	store, err := auth.NewStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	err = store.Create("nuevo.analista", "secreta", auth.User{
		Name:  "Analista Nuevo",
		Email: "nuevo@salud-malaga.es",
		Role:  "analista",
	})
	require.NoError(t, err)

	user, err := store.Authenticate("nuevo.analista", "secreta")
	require.NoError(t, err)
	assert.Equal(t, "analista", user.Role)

	assert.ErrorIs(t, store.Create("nuevo.analista", "otra", auth.User{}), auth.ErrUserExists)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := auth.NewTokenIssuer("secreto-de-prueba", auth.WithIssuerClock(func() time.Time { return now }))

	token, err := issuer.Issue("gestor.malaga", "gestor")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "gestor.malaga", claims.Username)
	assert.Equal(t, "gestor", claims.Role)
	assert.Equal(t, now.Add(8*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestTokenIssuer_Expiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := auth.NewTokenIssuer("secreto-de-prueba", auth.WithIssuerClock(func() time.Time { return now }))

	token, err := issuer.Issue("demo", "invitado")
	require.NoError(t, err)

	now = now.Add(9 * time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := auth.NewTokenIssuer("secreto-correcto")
	token, err := issuer.Issue("demo", "invitado")
	require.NoError(t, err)

	other := auth.NewTokenIssuer("secreto-distinto")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
