package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/internal/ledger"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
)

type creditEntryResponse struct {
	ID         uuid.UUID          `json:"id"`
	PreOrderID *uuid.UUID         `json:"pre_order_id,omitempty"`
	DesignID   *uuid.UUID         `json:"design_id,omitempty"`
	Reason     enums.CreditReason `json:"reason"`
	Amount     decimal.Decimal    `json:"amount"`
	Note       *string            `json:"note,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

type creditsResponse struct {
	Balance decimal.Decimal       `json:"balance"`
	Entries []creditEntryResponse `json:"entries"`
}

// GetMyCredits returns the caller's store credit balance and recent entries.
func GetMyCredits(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
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

		balance, err := svc.Balance(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.ListByUser(r.Context(), actor.UserID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := creditsResponse{Balance: balance, Entries: make([]creditEntryResponse, 0, len(entries))}
		for _, entry := range entries {
			resp.Entries = append(resp.Entries, toCreditEntryResponse(entry))
		}
		responses.WriteSuccess(w, resp)
	}
}

func toCreditEntryResponse(entry models.StoreCreditEntry) creditEntryResponse {
	return creditEntryResponse{
		ID:         entry.ID,
		PreOrderID: entry.PreOrderID,
		DesignID:   entry.DesignID,
		Reason:     entry.Reason,
		Amount:     entry.Amount,
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}
}
