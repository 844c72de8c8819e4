package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// PaymentCaptureParams describes one immediately completed card charge.
type PaymentCaptureParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

// CaptureResult is what the pre-order flow keeps from a Square payment.
type CaptureResult struct {
	PaymentID string
	Status    string
}

func (r CaptureResult) Completed() bool {
	switch strings.ToUpper(r.Status) {
	case "COMPLETED", "APPROVED":
		return true
	}
	return false
}

func (p PaymentCaptureParams) toSquareRequest() *sq.CreatePaymentRequest {
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = sq.Currency("USD")
	}
	amount := p.AmountCents
	autocomplete := true

	return &sq.CreatePaymentRequest{
		IdempotencyKey: p.IdempotencyKey,
		SourceID:       p.SourceID,
		LocationID:     optional(p.LocationID),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
		Autocomplete:   &autocomplete,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
