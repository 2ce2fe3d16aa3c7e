package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticelearn/lattice-api/internal/config"
)

const testSecret = "test-secret-key-thats-32-characters-long"

func newTestJWTService(t *testing.T, now time.Time) *hmacJWTService {
	t.Helper()
	service, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)

	impl, ok := service.(*hmacJWTService)
	require.True(t, ok)
	impl.timeFunc = func() time.Time { return now }
	return impl
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "too-short"})
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	service := newTestJWTService(t, now)
	userID := uuid.New()
	ctx := context.Background()

	token, err := service.GenerateToken(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(defaultTokenLifetime).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenExpiry(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	service := newTestJWTService(t, now)
	ctx := context.Background()

	token, err := service.GenerateToken(ctx, uuid.New())
	require.NoError(t, err)

	t.Run("valid within lifetime", func(t *testing.T) {
		service.timeFunc = func() time.Time { return now.Add(defaultTokenLifetime - time.Minute) }
		_, err := service.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("clock skew tolerated past expiry", func(t *testing.T) {
		service.timeFunc = func() time.Time {
			return now.Add(defaultTokenLifetime + service.clockSkew - time.Second)
		}
		_, err := service.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("expired beyond skew", func(t *testing.T) {
		service.timeFunc = func() time.Time {
			return now.Add(defaultTokenLifetime + service.clockSkew + time.Minute)
		}
		_, err := service.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestValidateTokenRejectsBadTokens(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	service := newTestJWTService(t, now)
	ctx := context.Background()

	t.Run("malformed", func(t *testing.T) {
		_, err := service.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := newTestJWTService(t, now)
		other.signingKey = []byte("another-secret-key-32-characters!!")

		token, err := other.GenerateToken(ctx, uuid.New())
		require.NoError(t, err)

		_, err = service.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong signing algorithm", func(t *testing.T) {
		// An unsigned token must never validate, whatever its claims say.
		claims := jwtCustomClaims{
			UserID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.New().String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
