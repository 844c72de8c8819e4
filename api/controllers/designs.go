package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
	"github.com/angelmondragon/designdrop-backend/pkg/visibility"
)

type createDesignRequest struct {
	Title       string   `json:"title" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=4000"`
	Category    string   `json:"category" validate:"required,max=64"`
	Materials   []string `json:"materials" validate:"max=20,dive,max=64"`
	ImageURLs   []string `json:"image_urls" validate:"max=10,dive,url"`
}

type updateDesignRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=4000"`
	Category    *string   `json:"category" validate:"omitempty,min=1,max=64"`
	Materials   *[]string `json:"materials" validate:"omitempty,max=20,dive,max=64"`
	ImageURLs   *[]string `json:"image_urls" validate:"omitempty,max=10,dive,url"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type pricingRequest struct {
	TierSchedule  types.TierSchedule `json:"tier_schedule" validate:"required,min=1"`
	BaseUnitCost  decimal.Decimal    `json:"base_unit_cost" validate:"money"`
	RoyaltyRate   *decimal.Decimal   `json:"royalty_rate" validate:"omitempty,ratio"`
	GoalThreshold *int               `json:"goal_threshold" validate:"omitempty,gt=0"`
}

// ListDesigns returns a page of designs filtered by status and designer.
func ListDesigns(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("designs"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		designerID, err := validators.ParseQueryUUID(r, "designer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := submissions.ListParams{
			DesignerID: designerID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseSubmissionStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			params.Status = &status
		}

		viewer := optionalActor(r)
		if !visibility.CanSeeAll(viewer, designerID) {
			if params.Status != nil && !visibility.IsPublic(*params.Status) {
				responses.WriteSuccess(w, &submissions.ListResult{Items: []submissions.DesignDTO{}})
				return
			}
			params.Statuses = visibility.PublicStatuses()
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetDesign returns a single design.
func GetDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("designs"))
			return
		}
		designID, err := validators.ParseUUIDParam(r, "designID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		design, err := svc.Get(r.Context(), designID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := visibility.EnsureDesignVisible(optionalActor(r), design.DesignerID, design.Status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, design)
	}
}

// CreateDesign stores a new draft owned by the calling designer.
func CreateDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("designs"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createDesignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		design, err := svc.CreateDraft(r.Context(), actor, submissions.DraftInput{
			Title:       validators.SanitizeString(body.Title, 120),
			Description: validators.SanitizeString(body.Description, 4000),
			Category:    validators.SanitizeString(body.Category, 64),
			Materials:   body.Materials,
			ImageURLs:   body.ImageURLs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, design)
	}
}

// UpdateDesign edits a draft.
func UpdateDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("designs"))
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

		var body updateDesignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		design, err := svc.UpdateDraft(r.Context(), actor, designID, submissions.UpdateDraftInput{
			Title:       body.Title,
			Description: body.Description,
			Category:    body.Category,
			Materials:   body.Materials,
			ImageURLs:   body.ImageURLs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, design)
	}
}

// SubmitDesign moves a draft into review.
func SubmitDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		return svc.SubmitForReview(r.Context(), ref.actor, ref.id)
	})
}

// ApproveDesign opens community voting.
func ApproveDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		return svc.Approve(r.Context(), ref.actor, ref.id)
	})
}

// RejectDesign rejects a design under review.
func RejectDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		var body reasonRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), ref.actor, ref.id, validators.SanitizeString(body.Reason, 500))
	})
}

// ForceRejectDesign rejects a design from any non-terminal status.
func ForceRejectDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		var body reasonRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.ForceReject(r.Context(), ref.actor, ref.id, validators.SanitizeString(body.Reason, 500))
	})
}

// CloseDesignVoting closes the voting window ahead of the sweep.
func CloseDesignVoting(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		if err := ref.actor.RequireAdmin(); err != nil {
			return nil, err
		}
		return svc.CloseVoting(r.Context(), ref.id)
	})
}

// ConfigureDesignPricing stores the tier schedule and royalty settings.
func ConfigureDesignPricing(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		var body pricingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.ConfigurePricing(r.Context(), ref.actor, ref.id, submissions.PricingInput{
			TierSchedule:  body.TierSchedule,
			BaseUnitCost:  body.BaseUnitCost,
			RoyaltyRate:   body.RoyaltyRate,
			GoalThreshold: body.GoalThreshold,
		})
	})
}

// LaunchDesign opens the pre-order window.
func LaunchDesign(svc submissions.Service, logg *logger.Logger) http.HandlerFunc {
	return designAction(logg, func(r *http.Request, ref designRef) (*submissions.DesignDTO, error) {
		if svc == nil {
			return nil, serviceUnavailable("designs")
		}
		return svc.Launch(r.Context(), ref.actor, ref.id)
	})
}

type designRef struct {
	actor auth.Actor
	id    uuid.UUID
}

func designAction(logg *logger.Logger, fn func(r *http.Request, ref designRef) (*submissions.DesignDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		design, err := fn(r.WithContext(ctx), designRef{actor: actor, id: designID})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, design)
	}
}
