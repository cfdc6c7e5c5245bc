package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(nil, "test-secret")

	t.Run("should validate a token it issued", func(t *testing.T) {
		userID := uuid.New()
		token, err := svc.issueToken(userID, "luna")
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "luna", claims.Username)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewService(nil, "different-secret")
		token, err := other.issueToken(uuid.New(), "mallory")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = svc.ValidateToken("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPrepareRegistrationValidation(t *testing.T) {
	svc := NewService(nil, "test-secret")
	ctx := context.Background()

	t.Run("should reject a malformed email", func(t *testing.T) {
		_, err := svc.PrepareRegistration(ctx, "not-an-email", "luna", "password123")
		assert.Error(t, err)
	})

	t.Run("should reject a short username", func(t *testing.T) {
		_, err := svc.PrepareRegistration(ctx, "luna@example.com", "lu", "password123")
		assert.Error(t, err)
	})

	t.Run("should reject a short password", func(t *testing.T) {
		_, err := svc.PrepareRegistration(ctx, "luna@example.com", "luna", "short")
		assert.Error(t, err)
	})
}
