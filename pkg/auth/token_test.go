package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "designdrop", ExpirationMinutes: 30}
}

func mint(t *testing.T, cfg config.JWTConfig, issuedAt time.Time, role enums.UserRole) string {
	t.Helper()
	token, err := MintAccessToken(cfg, issuedAt, AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func TestMintedTokenRoundTrips(t *testing.T) {
	cfg := jwtConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleDesigner, JTI: "jti-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "designdrop", claims.Issuer)
	assert.Equal(t, "jti-1", claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)

	actor := claims.Actor()
	assert.Equal(t, userID, actor.UserID)
	assert.True(t, actor.IsDesigner())
}

func TestParseRejects(t *testing.T) {
	cfg := jwtConfig()
	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	otherSecret := cfg
	otherSecret.Secret = "rotated"

	noUser := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		Role:             enums.UserRoleMember,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "designdrop", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	noUserToken, err := noUser.SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.UserRoleMember,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "designdrop"},
	})
	noExpiryToken, err := noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		cfg   config.JWTConfig
		token string
		is    error
	}{
		{"tampered signature", cfg, mint(t, cfg, time.Now(), enums.UserRoleMember) + "x", jwt.ErrTokenSignatureInvalid},
		{"expired", cfg, mint(t, cfg, time.Now().Add(-time.Hour), enums.UserRoleMember), jwt.ErrTokenExpired},
		{"wrong issuer", otherIssuer, mint(t, cfg, time.Now(), enums.UserRoleAdmin), jwt.ErrTokenInvalidIssuer},
		{"rotated secret", otherSecret, mint(t, cfg, time.Now(), enums.UserRoleAdmin), jwt.ErrTokenSignatureInvalid},
		{"missing user", cfg, noUserToken, jwt.ErrTokenInvalidClaims},
		{"missing expiry", cfg, noExpiryToken, jwt.ErrTokenRequiredClaimMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestMintValidatesInput(t *testing.T) {
	_, err := MintAccessToken(jwtConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New()})
	assert.ErrorContains(t, err, "invalid user role")

	noSecret := jwtConfig()
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleMember})
	assert.ErrorContains(t, err, "secret")

	noTTL := jwtConfig()
	noTTL.ExpirationMinutes = 0
	_, err = MintAccessToken(noTTL, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleMember})
	assert.ErrorContains(t, err, "expiration")
}
