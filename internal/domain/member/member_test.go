package member

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMemberRepo struct {
	byEmail map[string]*Member
	err     error
}

func (m *mockMemberRepo) FindByEmail(_ context.Context, email string) (*Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	mem, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return mem, nil
}

func TestAuthenticator_Authenticate(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	require.NoError(t, err)

	repo := &mockMemberRepo{byEmail: map[string]*Member{
		"a@a.com": {ID: 1, Email: "a@a.com", PasswordHash: hash},
	}}
	auth := NewAuthenticator(repo)

	t.Run("valid credentials", func(t *testing.T) {
		m, err := auth.Authenticate(context.Background(), "a@a.com", "secret-pass")
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Authenticate(context.Background(), "a@a.com", "nope")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := auth.Authenticate(context.Background(), "b@b.com", "secret-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("repository failure is not a credential error", func(t *testing.T) {
		broken := NewAuthenticator(&mockMemberRepo{err: errors.New("connection refused")})
		_, err := broken.Authenticate(context.Background(), "a@a.com", "secret-pass")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
		assert.Contains(t, err.Error(), "find member")
	})
}
