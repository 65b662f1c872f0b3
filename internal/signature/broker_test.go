package signature_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensabot/expensa/internal/signature"
)

func TestBrokerVerifier_Verify(t *testing.T) {
	const (
		currentKey = "current-signing-key"
		nextKey    = "next-signing-key"
	)

	body := []byte(`{"message":{"id":"wamid.A"},"phone_number_id":"123"}`)
	verifier := signature.NewBrokerVerifier(currentKey, nextKey)

	t.Run("token signed with current key", func(t *testing.T) {
		token, err := signature.SignBroker(body, currentKey)
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify(body, token))
	})

	t.Run("token signed with next key during rotation", func(t *testing.T) {
		token, err := signature.SignBroker(body, nextKey)
		require.NoError(t, err)

		assert.NoError(t, verifier.Verify(body, token))
	})

	t.Run("token signed with unknown key", func(t *testing.T) {
		token, err := signature.SignBroker(body, "some-retired-key")
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify(body, token), signature.ErrInvalidSignature)
	})

	t.Run("missing token", func(t *testing.T) {
		assert.ErrorIs(t, verifier.Verify(body, ""), signature.ErrMissingSignature)
	})

	t.Run("malformed token", func(t *testing.T) {
		assert.ErrorIs(t, verifier.Verify(body, "not.a.jwt"), signature.ErrInvalidSignature)
	})

	t.Run("body tampered after signing", func(t *testing.T) {
		token, err := signature.SignBroker(body, currentKey)
		require.NoError(t, err)

		tampered := []byte(`{"message":{"id":"wamid.B"},"phone_number_id":"123"}`)
		assert.ErrorIs(t, verifier.Verify(tampered, token), signature.ErrBodyMismatch)
	})

	t.Run("token without body claim", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "broker",
		}).SignedString([]byte(currentKey))
		require.NoError(t, err)

		assert.ErrorIs(t, verifier.Verify(body, token), signature.ErrBodyMismatch)
	})
}
