package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "designID", id.String())
	got, err := ParseUUIDParam(req, "designID")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "designID", "nope")
	_, err = ParseUUIDParam(req, "designID")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unread=1&designer_id=bad&limit=500", nil)

	unread, err := ParseQueryBool(req, "unread", false)
	require.NoError(t, err)
	assert.True(t, unread)

	_, err = ParseQueryUUID(req, "designer_id")
	assert.Error(t, err)

	missing, err := ParseQueryUUID(req, "status")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryInt(req, "limit", 25, 1, 100)
	assert.Error(t, err)
}
