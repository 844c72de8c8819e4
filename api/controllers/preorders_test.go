package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/internal/preorders"
	"github.com/angelmondragon/designdrop-backend/internal/votes"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

type fakePreOrders struct {
	preorders.Service
	placeFn func(actor auth.Actor, input preorders.PlaceOrderInput) (*preorders.PlaceOrderResult, error)
	quoteFn func(designID uuid.UUID, quantity int) (*preorders.QuoteDTO, error)
}

func (f *fakePreOrders) PlaceOrder(_ context.Context, actor auth.Actor, input preorders.PlaceOrderInput) (*preorders.PlaceOrderResult, error) {
	return f.placeFn(actor, input)
}

func (f *fakePreOrders) Quote(_ context.Context, designID uuid.UUID, quantity int) (*preorders.QuoteDTO, error) {
	return f.quoteFn(designID, quantity)
}

func TestPlaceOrderPassesIdempotencyKey(t *testing.T) {
	actor := memberActor()
	designID := uuid.New()
	var got preorders.PlaceOrderInput
	svc := &fakePreOrders{placeFn: func(_ auth.Actor, input preorders.PlaceOrderInput) (*preorders.PlaceOrderResult, error) {
		got = input
		return &preorders.PlaceOrderResult{Order: preorders.OrderDTO{ID: uuid.New(), Status: enums.PreOrderStatusCharged}}, nil
	}}

	req := newRequest(t, http.MethodPost, "/api/v1/pre-orders", map[string]any{
		"design_id":     designID,
		"size":          "m",
		"quantity":      2,
		"claimed_total": "59.98",
		"source_id":     "cnon:card-nonce-ok",
	}, &actor, nil)
	req.Header.Set("Idempotency-Key", "order-abc")
	rec := httptest.NewRecorder()
	PlaceOrder(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "order-abc", got.IdempotencyKey)
	assert.Equal(t, "M", got.Size)
	assert.Equal(t, designID, got.DesignID)
	require.NotNil(t, got.ClaimedTotal)
	assert.True(t, got.ClaimedTotal.Equal(decimal.RequireFromString("59.98")))
}

func TestPlaceOrderReplayReturnsOK(t *testing.T) {
	actor := memberActor()
	svc := &fakePreOrders{placeFn: func(auth.Actor, preorders.PlaceOrderInput) (*preorders.PlaceOrderResult, error) {
		return &preorders.PlaceOrderResult{Replayed: true}, nil
	}}
	req := newRequest(t, http.MethodPost, "/api/v1/pre-orders", map[string]any{
		"design_id": uuid.New(), "size": "L", "quantity": 1, "source_id": "cnon:x",
	}, &actor, nil)
	rec := httptest.NewRecorder()
	PlaceOrder(svc, testLogger())(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceOrderMapsClosedCampaign(t *testing.T) {
	actor := memberActor()
	svc := &fakePreOrders{placeFn: func(auth.Actor, preorders.PlaceOrderInput) (*preorders.PlaceOrderResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotOpenForOrders, "pre-order window closed")
	}}
	req := newRequest(t, http.MethodPost, "/api/v1/pre-orders", map[string]any{
		"design_id": uuid.New(), "size": "L", "quantity": 1, "source_id": "cnon:x",
	}, &actor, nil)
	rec := httptest.NewRecorder()
	PlaceOrder(svc, testLogger())(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotOpenForOrders), errorCode(t, rec))
}

func TestPlaceOrderRejectsZeroQuantity(t *testing.T) {
	actor := memberActor()
	req := newRequest(t, http.MethodPost, "/api/v1/pre-orders", map[string]any{
		"design_id": uuid.New(), "size": "L", "quantity": 0, "source_id": "cnon:x",
	}, &actor, nil)
	rec := httptest.NewRecorder()
	PlaceOrder(&fakePreOrders{}, testLogger())(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteDesignDefaultsQuantity(t *testing.T) {
	designID := uuid.New()
	svc := &fakePreOrders{quoteFn: func(id uuid.UUID, quantity int) (*preorders.QuoteDTO, error) {
		assert.Equal(t, designID, id)
		assert.Equal(t, 1, quantity)
		return &preorders.QuoteDTO{DesignID: id, Tier: 1, UnitPrice: decimal.RequireFromString("29.99"), Quantity: 1}, nil
	}}
	rec := httptest.NewRecorder()
	QuoteDesign(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/", nil, nil, map[string]string{"designID": designID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var quote preorders.QuoteDTO
	decodeData(t, rec, &quote)
	assert.Equal(t, "29.99", quote.UnitPrice.StringFixed(2))
}

type fakeVotes struct {
	votes.Service
	castFn func(actor auth.Actor, designID uuid.UUID, voteType enums.VoteType) (*votes.CastResult, error)
}

func (f *fakeVotes) Cast(_ context.Context, actor auth.Actor, designID uuid.UUID, voteType enums.VoteType) (*votes.CastResult, error) {
	return f.castFn(actor, designID, voteType)
}

func TestCastVote(t *testing.T) {
	actor := memberActor()
	designID := uuid.New()
	svc := &fakeVotes{castFn: func(_ auth.Actor, id uuid.UUID, voteType enums.VoteType) (*votes.CastResult, error) {
		assert.Equal(t, enums.VoteTypeUpvote, voteType)
		vote := voteType
		return &votes.CastResult{Vote: &vote, Tally: votes.Tally{DesignID: id, Upvotes: 1, NetScore: 1, ApprovalPercentage: 100}}, nil
	}}
	params := map[string]string{"designID": designID.String()}

	rec := httptest.NewRecorder()
	CastVote(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", map[string]any{"vote_type": "upvote"}, &actor, params))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result votes.CastResult
	decodeData(t, rec, &result)
	assert.Equal(t, 1, result.Tally.NetScore)

	rec = httptest.NewRecorder()
	CastVote(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", map[string]any{"vote_type": "meh"}, &actor, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
