package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuschat/server/internal/store"
)

func newService() *Service {
	return NewService(store.New(store.Limits{}), NewTokenManager("test-secret", "test"))
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, VerifyPassword("secret123", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("secret123", "not-a-hash"))
}

func TestRegister(t *testing.T) {
	svc := newService()

	id, err := svc.Register("alice", "secret123", store.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	// The stored hash is never the raw password.
	user, _, err := svc.Login("alice", "secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestRegisterBounds(t *testing.T) {
	svc := newService()

	_, err := svc.Register("ab", "secret123", store.RoleUser)
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Register(strings.Repeat("x", MaxUsernameLen+1), "secret123", store.RoleUser)
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Register("alice", "short", store.RoleUser)
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Register("alice", strings.Repeat("x", MaxPasswordLen+1), store.RoleUser)
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newService()

	_, err := svc.Register("alice", "secret123", store.RoleUser)
	require.NoError(t, err)

	_, err = svc.Register("alice", "other-secret", store.RoleUser)
	assert.ErrorIs(t, err, store.ErrUserExists)
}

func TestLogin(t *testing.T) {
	svc := newService()
	id, err := svc.Register("alice", "secret123", store.RoleAdmin)
	require.NoError(t, err)

	user, token, err := svc.Login("alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.True(t, user.Online)
	assert.NotEmpty(t, token)

	claims, err := svc.Tokens().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, store.RoleAdmin, claims.Role)
}

func TestLoginBadCredentials(t *testing.T) {
	svc := newService()
	_, err := svc.Register("alice", "secret123", store.RoleUser)
	require.NoError(t, err)

	// Unknown user and wrong password are indistinguishable to callers.
	_, _, err = svc.Login("nobody", "secret123")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = svc.Login("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestLogout(t *testing.T) {
	svc := newService()
	id, err := svc.Register("alice", "secret123", store.RoleUser)
	require.NoError(t, err)

	_, _, err = svc.Login("alice", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(id))

	assert.ErrorIs(t, svc.Logout(999), store.ErrUserNotFound)
}

func TestValidateRejectsTampering(t *testing.T) {
	tm := NewTokenManager("test-secret", "test")

	token, err := tm.Generate(1, store.RoleUser)
	require.NoError(t, err)

	_, err = tm.Validate(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with a different secret must not validate.
	other := NewTokenManager("other-secret", "test")
	foreign, err := other.Generate(1, store.RoleUser)
	require.NoError(t, err)

	_, err = tm.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
