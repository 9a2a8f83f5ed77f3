package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorlink/config"
)

func TestCredentialRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	plain := "smtp-app-password"
	stored, err := EncryptCredential(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, stored)

	back, err := DecryptCredential(stored)
	require.NoError(t, err)
	assert.Equal(t, plain, back)
}

func TestCredentialEmptyStaysEmpty(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	stored, err := EncryptCredential("")
	require.NoError(t, err)
	assert.Equal(t, "", stored)

	back, err := DecryptCredential("")
	require.NoError(t, err)
	assert.Equal(t, "", back)
}

func TestDecryptCredentialRejectsGarbage(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	_, err := DecryptCredential("AAAA")
	assert.Error(t, err)
}

func TestEncryptCredentialUniqueIVs(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	a, err := EncryptCredential("same input")
	require.NoError(t, err)
	b, err := EncryptCredential("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
