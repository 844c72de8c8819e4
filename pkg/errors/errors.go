package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

// Transport-level codes.
const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Marketplace codes.
const (
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeNotOpenForOrders         Code = "NOT_OPEN_FOR_ORDERS"
	CodeInvalidQuantity          Code = "INVALID_QUANTITY"
	CodePaymentFailed            Code = "PAYMENT_FAILED"
	CodePricingNotConfigured     Code = "PRICING_NOT_CONFIGURED"
	CodeTierScheduleInvalid      Code = "TIER_SCHEDULE_INVALID"
	CodeSettlementPartialFailure Code = "SETTLEMENT_PARTIAL_FAILURE"
)

// Metadata controls how a code is rendered to API clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	hidden    = false
	exposed   = true
	final     = false
	retryable = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, final, "validation failed", exposed},
	CodeUnauthorized:  {http.StatusUnauthorized, final, "authentication required", hidden},
	CodeForbidden:     {http.StatusForbidden, final, "access denied", hidden},
	CodeNotFound:      {http.StatusNotFound, final, "resource not found", hidden},
	CodeConflict:      {http.StatusConflict, final, "conflict detected", hidden},
	CodeStateConflict: {http.StatusUnprocessableEntity, final, "state transition disallowed", exposed},
	CodeIdempotency:   {http.StatusConflict, final, "idempotency key reused", exposed},
	CodeRateLimit:     {http.StatusTooManyRequests, final, "rate limit exceeded", hidden},
	CodeInternal:      {http.StatusInternalServerError, retryable, "internal server error", hidden},
	CodeDependency:    {http.StatusServiceUnavailable, retryable, "dependency unavailable", exposed},

	CodeInvalidTransition:        {http.StatusUnprocessableEntity, final, "submission transition not allowed", exposed},
	CodeNotOpenForOrders:         {http.StatusConflict, final, "design is not open for pre-orders", exposed},
	CodeInvalidQuantity:          {http.StatusBadRequest, final, "quantity must be positive", exposed},
	CodePaymentFailed:            {http.StatusPaymentRequired, retryable, "payment capture failed", exposed},
	CodePricingNotConfigured:     {http.StatusUnprocessableEntity, final, "pricing tiers not configured", hidden},
	CodeTierScheduleInvalid:      {http.StatusBadRequest, final, "tier schedule invalid", exposed},
	CodeSettlementPartialFailure: {http.StatusInternalServerError, retryable, "settlement did not complete", hidden},
}

// MetadataFor falls back to the internal error rendering for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the coded error every service layer returns.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to cause. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost coded error carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
