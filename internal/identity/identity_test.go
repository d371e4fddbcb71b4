package identity

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newLocal(t *testing.T, env map[string]string) *Local {
	t.Helper()
	return NewLocal(t.TempDir(),
		WithBcryptCost(bcrypt.MinCost),
		WithGetenv(func(k string) string { return env[k] }))
}

func TestRegisterSignInSignOut(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t, nil)

	acct, err := l.Register(ctx, "  Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acct.Email)
	assert.NotEqual(t, "secret1", acct.PasswordHash)

	ti, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, ti, "register must not sign in")

	_, err = l.SignIn(ctx, "ada@example.com", "wrong!!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	ti, err = l.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "file", ti.Source)
	assert.NotEmpty(t, ti.Token)

	cur, err := l.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, ti.Token, cur.Token)
	assert.Equal(t, "ada@example.com", cur.Email)

	fi, err := os.Stat(filepath.Join(l.dir, credFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, l.SignOut(ctx))
	cur, err = l.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	// signing out twice is fine
	require.NoError(t, l.SignOut(ctx))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t, nil)

	_, err := l.Register(ctx, "nope", "secret1")
	require.ErrorIs(t, err, ErrInvalidEmail)
	_, err = l.Register(ctx, "a@b.c", "12345")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = l.Register(ctx, "a@b.c", "123456")
	require.NoError(t, err)
	_, err = l.Register(ctx, "A@B.C", "abcdef")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t, nil)

	require.ErrorIs(t, l.ChangePassword(ctx, "x", "yyyyyy"), ErrNotSignedIn)

	_, err := l.Register(ctx, "a@b.c", "old-pass")
	require.NoError(t, err)
	_, err = l.SignIn(ctx, "a@b.c", "old-pass")
	require.NoError(t, err)

	require.ErrorIs(t, l.ChangePassword(ctx, "wrong", "new-pass"), ErrInvalidCredentials)
	require.ErrorIs(t, l.ChangePassword(ctx, "old-pass", "short"), ErrWeakPassword)
	require.NoError(t, l.ChangePassword(ctx, "old-pass", "new-pass"))

	_, err = l.SignIn(ctx, "a@b.c", "old-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = l.SignIn(ctx, "a@b.c", "new-pass")
	require.NoError(t, err)
}

func TestEnvTokenOverride(t *testing.T) {
	l := newLocal(t, map[string]string{EnvToken: "Bearer abc.def"})
	ti, err := l.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ti)
	assert.Equal(t, "env", ti.Source)
	assert.Equal(t, "abc.def", ti.Token)
}

func TestClaims(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u1","email":"a@b.c"}`))
	claims, err := Claims("h." + payload + ".s")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])

	_, err = Claims("opaque-token")
	require.Error(t, err)
}
