package controllers

import (
	"net/http"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/internal/settlement"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

// SettleDesign runs settlement for a design whose pre-order window has ended.
// Re-settling a completed design returns the stored summary.
func SettleDesign(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("settlement"))
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
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithDesignID(ctx, designID.String())
		}

		summary, err := svc.Settle(ctx, actor, designID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
