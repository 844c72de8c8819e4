package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

type pricingBody struct {
	BaseUnitCost decimal.Decimal  `json:"base_unit_cost" validate:"money"`
	RoyaltyRate  *decimal.Decimal `json:"royalty_rate" validate:"omitempty,ratio"`
	ImageURLs    []string         `json:"image_urls" validate:"max=2,dive,url"`
}

func decode(t *testing.T, body string) (pricingBody, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest pricingBody
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAcceptsMoneyAndRatio(t *testing.T) {
	got, err := decode(t, `{"base_unit_cost":"12.50","royalty_rate":"0.1"}`)
	require.NoError(t, err)
	assert.True(t, got.BaseUnitCost.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, got.RoyaltyRate)
}

func TestDecodeJSONBodyRejectsBadAmounts(t *testing.T) {
	cases := map[string]string{
		"fractional cents": `{"base_unit_cost":"1.005"}`,
		"negative cost":    `{"base_unit_cost":"-1"}`,
		"rate above one":   `{"base_unit_cost":"1","royalty_rate":"1.5"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDecodeJSONBodyReportsNestedFieldPath(t *testing.T) {
	_, err := decode(t, `{"base_unit_cost":"1","image_urls":["https://cdn.example.com/a.png","not a url"]}`)
	require.Error(t, err)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok, "details %T", appErr.Details())
	assert.Equal(t, "must be a valid url", details["image_urls[1]"])
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	_, err := decode(t, `{"base_unit_cost":"1","surprise":true}`)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = decode(t, `{"base_unit_cost":"1"}{"base_unit_cost":"2"}`)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Neon Koi", SanitizeString("  Neon Koi\x00 ", 0))
	assert.Equal(t, "line one\nline two", SanitizeString("line one\nline two", 100))
	assert.Equal(t, "Café", SanitizeString("Café Racer", 4))
}
