package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("leave-42", "leave-42/note.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	resourceID, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "leave-42", resourceID)
	assert.Equal(t, "leave-42/note.pdf", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("leave-42", "leave-42/note.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	assert.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSignedURLRejectsExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	signer.ttl = -time.Minute
	token, _, err := signer.Generate("leave-42", "leave-42/note.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	assert.Error(t, err)
}

func TestSignedURLRequiresInput(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	_, _, err := signer.Generate("", "path")
	assert.Error(t, err)
	_, _, err = signer.Generate("id", "")
	assert.Error(t, err)
}
