package devauth

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	assert.Error(t, err)

	_, err = NewProvider(Config{UserID: "dev-user"})
	assert.Error(t, err)
}

func TestProvider_Login(t *testing.T) {
	provider, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	session, err := provider.Login(context.Background(), ports.LoginInput{})
	require.NoError(t, err)

	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	require.NotNil(t, session.User)
	assert.Equal(t, "dev-user", session.User.ID)
	assert.Equal(t, "dev@example.com", session.User.Email)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), session.ExpiresAt, time.Minute)
	assert.True(t, session.Valid())
}

func TestProvider_Login_TokensAreUnique(t *testing.T) {
	provider, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	first, err := provider.Login(context.Background(), ports.LoginInput{})
	require.NoError(t, err)
	second, err := provider.Login(context.Background(), ports.LoginInput{})
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
}

func TestProvider_Refresh(t *testing.T) {
	provider, err := NewProvider(Config{
		UserID:          "dev-user",
		Email:           "dev@example.com",
		SessionDuration: time.Hour,
	})
	require.NoError(t, err)

	session, err := provider.Refresh(context.Background(), "dev-refresh")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)
}

func TestProvider_Refresh_EmptyToken(t *testing.T) {
	provider, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	_, err = provider.Refresh(context.Background(), "")
	assert.True(t, apperrors.IsRefreshInvalid(err))
}

func TestProvider_Logout(t *testing.T) {
	provider, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	assert.NoError(t, provider.Logout(context.Background(), "anything"))
}
