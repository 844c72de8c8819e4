// Package squarewebhook applies Square payment notifications to pre-orders.
package squarewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/designdrop-backend/internal/preorders"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

// Square payment statuses.
const (
	paymentStatusCompleted = "COMPLETED"
	paymentStatusFailed    = "FAILED"
	paymentStatusCanceled  = "CANCELED"
)

type captureRecorder interface {
	ConfirmCapture(ctx context.Context, orderID uuid.UUID, chargeID string) (*preorders.OrderDTO, error)
	RecordCaptureFailure(ctx context.Context, orderID uuid.UUID, reason string) (*preorders.OrderDTO, error)
}

type ServiceParams struct {
	Orders captureRecorder
	Logger *logger.Logger
}

type Service struct {
	orders captureRecorder
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pre-order service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{orders: params.Orders, logg: params.Logger}, nil
}

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

// SquarePayment is the subset of the payment object the webhook reads.
type SquarePayment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	CardDetails *struct {
		Status string `json:"status"`
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	} `json:"card_details"`
}

// HandleEvent confirms or fails the pre-order referenced by a payment event.
// Unknown event types and payments without a pre-order reference are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if strings.TrimSpace(payment.ReferenceID) == "" {
		s.logg.Debug(ctx, "square payment without reference ignored")
		return nil
	}
	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reference_id", payment.ReferenceID), "square payment reference is not a pre-order")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	switch strings.ToUpper(payment.Status) {
	case paymentStatusCompleted:
		chargeID := payment.ID
		if chargeID == "" {
			chargeID = event.Data.ID
		}
		_, err = s.orders.ConfirmCapture(ctx, orderID, chargeID)
	case paymentStatusFailed, paymentStatusCanceled:
		_, err = s.orders.RecordCaptureFailure(ctx, orderID, failureReason(payment))
	default:
		return nil
	}
	if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(ctx, "square payment references unknown pre-order")
		return nil
	}
	return err
}

func failureReason(payment *SquarePayment) string {
	if payment.CardDetails != nil {
		for _, e := range payment.CardDetails.Errors {
			if e.Detail != "" {
				return e.Detail
			}
			if e.Code != "" {
				return e.Code
			}
		}
	}
	return "square payment " + strings.ToLower(payment.Status)
}
