package controllers

import (
	"net/http"

	"github.com/angelmondragon/designdrop-backend/api/middleware"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return actor, nil
}

// optionalActor returns the caller on routes where authentication is optional.
func optionalActor(r *http.Request) *auth.Actor {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return nil
	}
	return &actor
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
