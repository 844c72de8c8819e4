package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "designdrop", ExpirationMinutes: 15}
}

func mintToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now().UTC(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func actorEcho(seen *pkgAuth.Actor, present *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen, *present = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAttachesActor(t *testing.T) {
	userID := uuid.New()
	var seen pkgAuth.Actor
	var present bool

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, userID, enums.UserRoleDesigner))
	rec := httptest.NewRecorder()
	Auth(testJWTConfig(), nil)(actorEcho(&seen, &present)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, present)
	assert.Equal(t, userID, seen.UserID)
	assert.Equal(t, enums.UserRoleDesigner, seen.Role)
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	var seen pkgAuth.Actor
	var present bool
	handler := Auth(testJWTConfig(), nil)(actorEcho(&seen, &present))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, present)
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	var seen pkgAuth.Actor
	present := true

	rec := httptest.NewRecorder()
	OptionalAuth(testJWTConfig(), nil)(actorEcho(&seen, &present)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, present)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleAdmin)(okHandler())

	cases := []struct {
		name string
		role enums.UserRole
		want int
	}{
		{"admin", enums.UserRoleAdmin, http.StatusNoContent},
		{"designer", enums.UserRoleDesigner, http.StatusForbidden},
		{"member", enums.UserRoleMember, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(WithActor(req.Context(), pkgAuth.Actor{UserID: uuid.New(), Role: tc.role}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
