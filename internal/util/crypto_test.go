package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoRandomBytes(t *testing.T) {
	a, err := CryptoRandomBytes(20)
	require.NoError(t, err)
	assert.Len(t, a, 20)

	b, err := CryptoRandomBytes(20)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCryptoRandomString(t *testing.T) {
	s, err := CryptoRandomString(20)
	require.NoError(t, err)
	assert.Len(t, s, 20)

	// Odd lengths round up internally and then truncate
	odd, err := CryptoRandomString(7)
	require.NoError(t, err)
	assert.Len(t, odd, 7)
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token", "salt")
	h2 := HashToken("token", "salt")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 100) // 50 bytes hex-encoded

	assert.NotEqual(t, h1, HashToken("token", "other-salt"))
	assert.NotEqual(t, h1, HashToken("other-token", "salt"))
}
