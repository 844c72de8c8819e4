package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/internal/payouts"
	"github.com/angelmondragon/designdrop-backend/internal/settlement"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

type settleFunc func(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*settlement.Summary, error)

func (f settleFunc) Settle(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*settlement.Summary, error) {
	return f(ctx, actor, designID)
}

func TestSettleDesignReturnsSummary(t *testing.T) {
	admin := adminActor()
	designID := uuid.New()
	svc := settleFunc(func(_ context.Context, actor auth.Actor, id uuid.UUID) (*settlement.Summary, error) {
		require.Equal(t, admin.UserID, actor.UserID)
		return &settlement.Summary{DesignID: id, FinalQuantity: 80, RefundsIssued: 30}, nil
	})

	rec := httptest.NewRecorder()
	SettleDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", nil, &admin, map[string]string{"designID": designID.String()}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSettleDesignHidesPartialFailureDetails(t *testing.T) {
	admin := adminActor()
	svc := settleFunc(func(context.Context, auth.Actor, uuid.UUID) (*settlement.Summary, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSettlementPartialFailure, errors.New("ledger insert failed"), "settle design")
	})

	rec := httptest.NewRecorder()
	SettleDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", nil, &admin, map[string]string{"designID": uuid.NewString()}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeSettlementPartialFailure), errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "ledger insert failed")
}

type fakePayouts struct {
	payouts.Service
	setCapFn func(actor auth.Actor, designerID uuid.UUID, limit decimal.Decimal) (*payouts.CapDTO, error)
	listFn   func(actor auth.Actor, designerID uuid.UUID, limit int) ([]payouts.PayoutDTO, error)
}

func (f *fakePayouts) SetQuarterlyCap(_ context.Context, actor auth.Actor, designerID uuid.UUID, limit decimal.Decimal) (*payouts.CapDTO, error) {
	return f.setCapFn(actor, designerID, limit)
}

func (f *fakePayouts) ListForDesigner(_ context.Context, actor auth.Actor, designerID uuid.UUID, limit int) ([]payouts.PayoutDTO, error) {
	return f.listFn(actor, designerID, limit)
}

func TestSetDesignerRoyaltyCap(t *testing.T) {
	admin := adminActor()
	designerID := uuid.New()
	svc := &fakePayouts{setCapFn: func(_ auth.Actor, id uuid.UUID, limit decimal.Decimal) (*payouts.CapDTO, error) {
		assert.Equal(t, designerID, id)
		return &payouts.CapDTO{DesignerID: id, Cap: limit, Quarter: "2026-Q4"}, nil
	}}
	params := map[string]string{"designerID": designerID.String()}

	rec := httptest.NewRecorder()
	SetDesignerRoyaltyCap(svc, testLogger())(rec, newRequest(t, http.MethodPut, "/", map[string]any{"cap": "750.00"}, &admin, params))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var capDTO payouts.CapDTO
	decodeData(t, rec, &capDTO)
	assert.Equal(t, "750.00", capDTO.Cap.StringFixed(2))

	rec = httptest.NewRecorder()
	SetDesignerRoyaltyCap(svc, testLogger())(rec, newRequest(t, http.MethodPut, "/", map[string]any{"cap": "-1"}, &admin, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMyPayoutsScopesToCaller(t *testing.T) {
	designer := designerActor()
	svc := &fakePayouts{listFn: func(actor auth.Actor, designerID uuid.UUID, limit int) ([]payouts.PayoutDTO, error) {
		assert.Equal(t, designer.UserID, designerID)
		return []payouts.PayoutDTO{{ID: uuid.New(), DesignerID: designerID}}, nil
	}}
	rec := httptest.NewRecorder()
	ListMyPayouts(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/payouts", nil, &designer, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"db": up, "redis": up})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get(envHeader))

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"db": up, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
