package controllers

import (
	"net/http"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/internal/votes"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

type castVoteRequest struct {
	VoteType enums.VoteType `json:"vote_type" validate:"required,oneof=upvote downvote"`
}

// CastVote toggles the caller's vote on a design in community voting.
func CastVote(svc votes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("votes"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		designID, err := validators.ParseUUIDParam(r, "designID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body castVoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cast(r.Context(), actor, designID, body.VoteType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetVoteTally returns up, down, net and approval for a design.
func GetVoteTally(svc votes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("votes"))
			return
		}
		designID, err := validators.ParseUUIDParam(r, "designID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tally, err := svc.Tally(r.Context(), designID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tally)
	}
}

// GetMyVote returns the caller's current vote, or null.
func GetMyVote(svc votes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("votes"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		designID, err := validators.ParseUUIDParam(r, "designID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vote, err := svc.MyVote(r.Context(), actor, designID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"vote": vote})
	}
}
