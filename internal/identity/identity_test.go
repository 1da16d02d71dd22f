package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Murmur/internal/errs"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier([]byte("test-key"), time.Hour)

	token, exp, err := v.IssueToken("user-42")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	userID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerifier_WrongKey(t *testing.T) {
	issuer := NewVerifier([]byte("key-one"), time.Hour)
	verifier := NewVerifier([]byte("key-two"), time.Hour)

	token, _, err := issuer.IssueToken("user-42")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, errs.ErrAuth)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	v := NewVerifier([]byte("test-key"), -time.Minute)

	token, _, err := v.IssueToken("user-42")
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	assert.ErrorIs(t, err, errs.ErrAuth)
}

func TestVerifier_GarbageInput(t *testing.T) {
	v := NewVerifier([]byte("test-key"), time.Hour)

	_, err := v.VerifyToken("")
	assert.ErrorIs(t, err, errs.ErrAuth)

	_, err = v.VerifyToken("not.a.jwt")
	assert.ErrorIs(t, err, errs.ErrAuth)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("s3cret", "not-a-hash"))
}
