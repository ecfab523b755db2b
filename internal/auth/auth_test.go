package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func TestProvider_IssueAndAuthenticate(t *testing.T) {
	t.Parallel()

	p, err := NewProvider("secret")
	require.NoError(t, err)

	token, err := p.Issue(42)
	require.NoError(t, err)

	id, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, int64(42), id.UserID)
}

func TestProvider_Authenticate_Failures(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer, err := NewProvider("secret", WithProviderClock(func() time.Time { return issuedAt }), WithTokenTTL(time.Hour))
	require.NoError(t, err)
	expired, err := issuer.Issue(1)
	require.NoError(t, err)

	other, err := NewProvider("another-secret")
	require.NoError(t, err)
	foreign, err := other.Issue(1)
	require.NoError(t, err)

	p, err := NewProvider("secret")
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCredentials)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	for name, token := range map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong secret": foreign,
	} {
		_, err := p.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidToken, name)
		require.ErrorIs(t, err, domain.ErrUnauthenticated, name)
	}
}

func TestNewProvider_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewProvider("  ")
	require.ErrorIs(t, err, ErrSecretRequired)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer  abc "))
	require.Empty(t, BearerToken("abc"))
	require.Empty(t, BearerToken("Basic abc"))
	require.Empty(t, BearerToken(""))
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)
	require.NoError(t, CheckPassword(hash, "hunter2"))
	require.ErrorIs(t, CheckPassword(hash, "hunter3"), domain.ErrInvalidPassword)
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := memory.NewUserRepository()
	admin, err := users.Create(ctx, domain.User{Username: "root", Email: "root@example.com", PasswordHash: "x", IsAdmin: true})
	require.NoError(t, err)
	reader, err := users.Create(ctx, domain.User{Username: "reader", Email: "reader@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	require.NoError(t, RequireAdmin(ctx, users, Identity{UserID: admin.ID}))
	require.ErrorIs(t, RequireAdmin(ctx, users, Identity{UserID: reader.ID}), domain.ErrForbidden)
	require.ErrorIs(t, RequireAdmin(ctx, users, Identity{UserID: 999}), domain.ErrForbidden)
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	_, ok := IdentityFrom(context.Background())
	require.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: 5})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	require.Equal(t, int64(5), id.UserID)
}
