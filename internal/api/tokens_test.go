package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", 90*24*time.Hour)

	raw, err := tokens.Issue(42)
	require.NoError(t, err)
	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, 90*24*60*60, tokens.MaxAge())
}

func TestTokensRejectUnexpectedAlgorithms(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(none)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.Parse(noSubject)
	assert.Error(t, err)
}
