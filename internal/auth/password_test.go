package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

func TestPasswordHasher_Hash_ValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"8 characters", "password"},
		{"long password", "this-is-a-very-long-password-123!@#"},
		{"with special chars", "p@ssw0rd!"},
		{"with unicode", "パスワード12345"},
	}

	hasher := newTestHasher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)
			assert.True(t, len(hash) >= 60, "bcrypt hash should be at least 60 chars")
			assert.True(t, hasher.Check(tt.password, hash))
		})
	}
}

func TestPasswordHasher_Hash_ShortPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"7 characters", "1234567"},
		{"empty", ""},
		{"1 character", "a"},
		{"spaces only", "          "},
	}

	hasher := newTestHasher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			assert.ErrorIs(t, err, ErrPasswordTooShort)
			assert.Empty(t, hash)
		})
	}
}

func TestPasswordHasher_Check_WrongPassword(t *testing.T) {
	hasher := newTestHasher()
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	assert.False(t, hasher.Check("battery-staple", hash))
	assert.False(t, hasher.Check("", hash))
	assert.False(t, hasher.Check("correct-horse", "not-a-hash"))
}

func TestPasswordHasher_SaltedHashesDiffer(t *testing.T) {
	hasher := newTestHasher()

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewPasswordHasher_OutOfRangeCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).cost)
}
