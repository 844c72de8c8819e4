package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/internal/payouts"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
)

type royaltyCapRequest struct {
	Cap decimal.Decimal `json:"cap"`
}

// ListMyPayouts returns the calling designer's payouts.
func ListMyPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payouts"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListForDesigner(r.Context(), actor, actor.UserID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// GetMyRoyaltyCap returns the calling designer's quarter cap and headroom.
func GetMyRoyaltyCap(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payouts"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		capDTO, err := svc.GetCap(r.Context(), actor, actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, capDTO)
	}
}

// GetPayout returns a payout visible to the caller.
func GetPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutAction(svc, logg, func(r *http.Request, ref payoutRef) (any, error) {
		return svc.Get(r.Context(), ref.actor, ref.id)
	})
}

// CompletePayout marks a pending payout paid.
func CompletePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutAction(svc, logg, func(r *http.Request, ref payoutRef) (any, error) {
		return svc.MarkCompleted(r.Context(), ref.actor, ref.id)
	})
}

// FailPayout marks a pending payout failed with a reason.
func FailPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutAction(svc, logg, func(r *http.Request, ref payoutRef) (any, error) {
		var body reasonRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.MarkFailed(r.Context(), ref.actor, ref.id, validators.SanitizeString(body.Reason, 500))
	})
}

// GetDesignerRoyaltyCap returns any designer's cap for admins.
func GetDesignerRoyaltyCap(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payouts"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		designerID, err := validators.ParseUUIDParam(r, "designerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		capDTO, err := svc.GetCap(r.Context(), actor, designerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, capDTO)
	}
}

// SetDesignerRoyaltyCap overrides a designer's quarterly cap.
func SetDesignerRoyaltyCap(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payouts"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		designerID, err := validators.ParseUUIDParam(r, "designerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body royaltyCapRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Cap.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cap must not be negative"))
			return
		}
		capDTO, err := svc.SetQuarterlyCap(r.Context(), actor, designerID, body.Cap)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, capDTO)
	}
}

type payoutRef struct {
	actor auth.Actor
	id    uuid.UUID
}

func payoutAction(svc payouts.Service, logg *logger.Logger, fn func(r *http.Request, ref payoutRef) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payouts"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := fn(r, payoutRef{actor: actor, id: payoutID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}
