package common

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicKey(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromBytes, err := NewKeyFromBytes(publicKey)
	require.NoError(t, err)

	fromString, err := NewKeyFromString(base58.Encode(publicKey))
	require.NoError(t, err)

	for _, key := range []*Key{fromBytes, fromString} {
		assert.True(t, key.IsPublic())
		assert.EqualValues(t, publicKey, key.ToBytes())
		assert.Equal(t, base58.Encode(publicKey), key.ToBase58())
	}
	assert.True(t, fromBytes.Equals(fromString))

	// The key doesn't alias the caller's slice.
	publicKey[0]++
	assert.NotEqualValues(t, publicKey, fromBytes.ToBytes())
}

func TestPrivateKey(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromBytes, err := NewKeyFromBytes(privateKey)
	require.NoError(t, err)

	fromString, err := NewKeyFromString(base58.Encode(privateKey))
	require.NoError(t, err)

	for _, key := range []*Key{fromBytes, fromString} {
		assert.False(t, key.IsPublic())
		assert.EqualValues(t, privateKey, key.ToBytes())
		assert.Equal(t, base58.Encode(privateKey), key.ToBase58())
	}
}

func TestInvalidKey(t *testing.T) {
	_, err := NewKeyFromString("invalid-key")
	assert.Error(t, err)

	_, err = NewKeyFromString(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)

	_, err = NewKeyFromBytes([]byte("invalid-key"))
	assert.Error(t, err)

	var nilKey *Key
	assert.Error(t, nilKey.Validate())
	assert.True(t, nilKey.Equals(nil))
}
