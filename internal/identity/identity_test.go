package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	provider, err := NewProvider("test-secret")
	require.NoError(t, err)

	identity, err := provider.Issue()
	require.NoError(t, err)
	assert.Len(t, identity.UserID, 32)
	assert.NotEmpty(t, identity.Token)

	userID, err := provider.Verify(identity.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, userID)
}

func TestIssuedIdentifiersAreDistinct(t *testing.T) {
	provider, err := NewProvider("test-secret")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		identity, err := provider.Issue()
		require.NoError(t, err)
		assert.False(t, seen[identity.UserID])
		seen[identity.UserID] = true
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	provider, err := NewProvider("test-secret")
	require.NoError(t, err)

	_, err = provider.Verify("not-a-token")
	assert.Error(t, err)

	_, err = provider.Verify("")
	assert.Error(t, err)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer, err := NewProvider("secret-one")
	require.NoError(t, err)

	verifier, err := NewProvider("secret-two")
	require.NoError(t, err)

	identity, err := issuer.Issue()
	require.NoError(t, err)

	_, err = verifier.Verify(identity.Token)
	assert.Error(t, err)
}

func TestEmptySecretIsRejected(t *testing.T) {
	_, err := NewProvider("")
	assert.Error(t, err)
}
