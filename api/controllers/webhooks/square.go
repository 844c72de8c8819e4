package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	squarewebhook "github.com/angelmondragon/designdrop-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error
}

// SquareWebhookGuard deduplicates deliveries by Square event id.
type SquareWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type SquareSigner interface {
	SigningSecret() string
	NotificationURL() string
}

const (
	squareSignatureHeader = "X-Square-Hmacsha256-Signature"
	maxWebhookBody        = 256 << 10
)

type squareWebhook struct {
	svc    SquareWebhookService
	signer SquareSigner
	guard  SquareWebhookGuard
	logg   *logger.Logger
}

// SquareWebhook verifies the Square signature, drops redeliveries of an event
// already applied and hands the rest to svc. A failed apply releases the event
// id so Square's retry reaches svc again.
func SquareWebhook(svc SquareWebhookService, signer SquareSigner, guard SquareWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	h := squareWebhook{svc: svc, signer: signer, guard: guard, logg: logg}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.svc == nil || h.signer == nil || h.guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square webhook not configured"))
			return
		}

		event, eventID, err := h.verify(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := h.apply(ctx, event, eventID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func (h squareWebhook) verify(r *http.Request) (*squarewebhook.SquareWebhookEvent, string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	if len(body) > maxWebhookBody {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large")
	}

	signature := strings.TrimSpace(r.Header.Get(squareSignatureHeader))
	switch {
	case signature == "":
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "square signature missing")
	case !signatureValid(body, h.signer.NotificationURL(), h.signer.SigningSecret(), signature):
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature")
	}

	var event squarewebhook.SquareWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event")
	}
	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(event.Data.ID)
	}
	if eventID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "square event id missing")
	}
	return &event, eventID, nil
}

func (h squareWebhook) apply(ctx context.Context, event *squarewebhook.SquareWebhookEvent, eventID string) error {
	seen, err := h.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if h.logg != nil {
		ctx = h.logg.WithFields(ctx, map[string]any{"square_event_id": eventID, "square_event_type": event.Type})
	}
	if seen {
		if h.logg != nil {
			h.logg.Info(ctx, "square event already applied")
		}
		return nil
	}

	if err := h.svc.HandleEvent(ctx, event); err != nil {
		if releaseErr := h.guard.Delete(context.WithoutCancel(ctx), eventID); releaseErr != nil && h.logg != nil {
			h.logg.Error(ctx, "release square event marker", releaseErr)
		}
		return err
	}
	if h.logg != nil {
		h.logg.Info(ctx, "square event applied")
	}
	return nil
}

// signatureValid compares header against base64(HMAC-SHA256(url + body)).
func signatureValid(body []byte, notificationURL, secret, header string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
