package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// payments is the slice of the SDK payments resource the marketplace calls.
type payments interface {
	Create(ctx context.Context, request *sq.CreatePaymentRequest, opts ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error)
}

// Client captures pre-order payments and exposes the webhook signing inputs.
type Client struct {
	payments      payments
	locationID    string
	webhookSecret string
	webhookURL    string
	logg          *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square: logger is required")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = "sandbox"
	}
	host, ok := hosts[env]
	if !ok {
		return nil, fmt.Errorf("square: unknown environment %q", env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square: access token is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("square: webhook secret is required")
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token))
	logg.Info(logg.WithField(ctx, "square_env", env), "square client ready")
	return newClient(sdk.Payments, cfg.LocationID, secret, cfg.WebhookURL, logg), nil
}

func newClient(api payments, locationID, secret, webhookURL string, logg *logger.Logger) *Client {
	return &Client{
		payments:      api,
		locationID:    strings.TrimSpace(locationID),
		webhookSecret: secret,
		webhookURL:    strings.TrimSpace(webhookURL),
		logg:          logg,
	}
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NotificationURL is the URL Square includes in the webhook signature.
func (c *Client) NotificationURL() string {
	if c == nil {
		return ""
	}
	return c.webhookURL
}

// CapturePayment charges the source with autocomplete on. A payment that
// comes back in any status other than completed is reported as
// CodePaymentFailed together with the Square payment id.
func (c *Client) CapturePayment(ctx context.Context, params PaymentCaptureParams) (*CaptureResult, error) {
	if c == nil || c.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client is not configured")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture amount must be positive")
	}
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture requires an idempotency key")
	}
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}

	// source ids are card nonces and never reach the log
	ctx = c.logg.WithFields(ctx, map[string]any{
		"square_op":    "capture_payment",
		"location_id":  params.LocationID,
		"amount_cents": params.AmountCents,
		"reference_id": params.ReferenceID,
	})

	resp, err := c.payments.Create(ctx, params.toSquareRequest())
	if err != nil {
		mapped := classify(err)
		c.logg.Error(ctx, "square capture failed", mapped)
		return nil, mapped
	}

	var result CaptureResult
	if payment := resp.GetPayment(); payment != nil {
		result.PaymentID = deref(payment.GetID())
		result.Status = deref(payment.GetStatus())
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_id":     result.PaymentID,
		"payment_status": result.Status,
	}), "square capture returned")

	if !result.Completed() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "payment status "+strings.ToLower(result.Status)).
			WithDetails(map[string]any{"payment_id": result.PaymentID})
	}
	return &result, nil
}

// classify turns an SDK failure into a domain error. The first Square error
// entry with a known code or category decides; otherwise the HTTP status does.
func classify(err error) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square request failed")
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, entry := range squareErrors(apiErr) {
		if specific, ok := codeForEntry(entry); ok {
			code = specific
			break
		}
	}
	return pkgerrors.Wrap(code, err, "square request failed")
}

func codeForEntry(entry *sq.Error) (pkgerrors.Code, bool) {
	if entry == nil {
		return "", false
	}
	switch {
	case entry.Code == sq.ErrorCodeIdempotencyKeyReused:
		return pkgerrors.CodeIdempotency, true
	case entry.Category == sq.ErrorCategoryAuthenticationError:
		return pkgerrors.CodeUnauthorized, true
	case entry.Category == sq.ErrorCategoryPaymentMethodError:
		return pkgerrors.CodePaymentFailed, true
	}
	return "", false
}

// squareErrors decodes the {"errors":[...]} body the SDK keeps as the
// wrapped error text.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case status == http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case status >= 400 && status < 500:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
