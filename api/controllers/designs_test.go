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

	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

// fakeSubmissions embeds the interface so tests only stub what they call.
type fakeSubmissions struct {
	submissions.Service
	createFn  func(actor auth.Actor, input submissions.DraftInput) (*submissions.DesignDTO, error)
	listFn    func(params submissions.ListParams) (*submissions.ListResult, error)
	rejectFn  func(actor auth.Actor, id uuid.UUID, reason string) (*submissions.DesignDTO, error)
	pricingFn func(actor auth.Actor, id uuid.UUID, input submissions.PricingInput) (*submissions.DesignDTO, error)
	approveFn func(actor auth.Actor, id uuid.UUID) (*submissions.DesignDTO, error)
	getFn     func(id uuid.UUID) (*submissions.DesignDTO, error)
}

func (f *fakeSubmissions) Get(_ context.Context, id uuid.UUID) (*submissions.DesignDTO, error) {
	return f.getFn(id)
}

func (f *fakeSubmissions) CreateDraft(_ context.Context, actor auth.Actor, input submissions.DraftInput) (*submissions.DesignDTO, error) {
	return f.createFn(actor, input)
}

func (f *fakeSubmissions) List(_ context.Context, params submissions.ListParams) (*submissions.ListResult, error) {
	return f.listFn(params)
}

func (f *fakeSubmissions) Reject(_ context.Context, actor auth.Actor, id uuid.UUID, reason string) (*submissions.DesignDTO, error) {
	return f.rejectFn(actor, id, reason)
}

func (f *fakeSubmissions) ConfigurePricing(_ context.Context, actor auth.Actor, id uuid.UUID, input submissions.PricingInput) (*submissions.DesignDTO, error) {
	return f.pricingFn(actor, id, input)
}

func (f *fakeSubmissions) Approve(_ context.Context, actor auth.Actor, id uuid.UUID) (*submissions.DesignDTO, error) {
	return f.approveFn(actor, id)
}

func TestCreateDesignTrimsAndReturnsCreated(t *testing.T) {
	actor := designerActor()
	var got submissions.DraftInput
	svc := &fakeSubmissions{createFn: func(a auth.Actor, input submissions.DraftInput) (*submissions.DesignDTO, error) {
		require.Equal(t, actor.UserID, a.UserID)
		got = input
		return &submissions.DesignDTO{ID: uuid.New(), Title: input.Title, Status: enums.SubmissionStatusDraft}, nil
	}}

	req := newRequest(t, http.MethodPost, "/api/v1/designs", map[string]any{
		"title":      "  Midnight Hoodie  ",
		"category":   "hoodies",
		"materials":  []string{"cotton"},
		"image_urls": []string{"https://cdn.example.com/a.png"},
	}, &actor, nil)
	rec := httptest.NewRecorder()
	CreateDesign(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Midnight Hoodie", got.Title)
	var design submissions.DesignDTO
	decodeData(t, rec, &design)
	assert.Equal(t, enums.SubmissionStatusDraft, design.Status)
}

func TestCreateDesignValidatesBody(t *testing.T) {
	actor := designerActor()
	svc := &fakeSubmissions{}
	req := newRequest(t, http.MethodPost, "/api/v1/designs", map[string]any{"category": "hoodies"}, &actor, nil)
	rec := httptest.NewRecorder()
	CreateDesign(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestListDesignsParsesFilters(t *testing.T) {
	designerID := uuid.New()
	var got submissions.ListParams
	svc := &fakeSubmissions{listFn: func(params submissions.ListParams) (*submissions.ListResult, error) {
		got = params
		return &submissions.ListResult{}, nil
	}}

	req := newRequest(t, http.MethodGet, "/api/v1/designs?status=community_voting&designer_id="+designerID.String()+"&limit=10", nil, nil, nil)
	rec := httptest.NewRecorder()
	ListDesigns(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Status)
	assert.Equal(t, enums.SubmissionStatusCommunityVoting, *got.Status)
	require.NotNil(t, got.DesignerID)
	assert.Equal(t, designerID, *got.DesignerID)
	assert.Equal(t, 10, got.Limit)

	req = newRequest(t, http.MethodGet, "/api/v1/designs?status=bogus", nil, nil, nil)
	rec = httptest.NewRecorder()
	ListDesigns(svc, testLogger())(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDesignsLimitsAnonymousToPublicStatuses(t *testing.T) {
	calls := 0
	var got submissions.ListParams
	svc := &fakeSubmissions{listFn: func(params submissions.ListParams) (*submissions.ListResult, error) {
		calls++
		got = params
		return &submissions.ListResult{}, nil
	}}

	rec := httptest.NewRecorder()
	ListDesigns(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/designs", nil, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, got.Statuses, enums.SubmissionStatusDraft)
	assert.Contains(t, got.Statuses, enums.SubmissionStatusInProduction)

	rec = httptest.NewRecorder()
	ListDesigns(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/designs?status=draft", nil, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls, "hidden status filter must not reach the service")
}

func TestListDesignsLetsDesignerSeeOwnDrafts(t *testing.T) {
	actor := designerActor()
	var got submissions.ListParams
	svc := &fakeSubmissions{listFn: func(params submissions.ListParams) (*submissions.ListResult, error) {
		got = params
		return &submissions.ListResult{}, nil
	}}

	target := "/api/v1/designs?status=draft&designer_id=" + actor.UserID.String()
	rec := httptest.NewRecorder()
	ListDesigns(svc, testLogger())(rec, newRequest(t, http.MethodGet, target, nil, &actor, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Status)
	assert.Equal(t, enums.SubmissionStatusDraft, *got.Status)
	assert.Empty(t, got.Statuses)
}

func TestGetDesignHidesDraftsFromOthers(t *testing.T) {
	owner := designerActor()
	draftID := uuid.New()
	svc := &fakeSubmissions{getFn: func(id uuid.UUID) (*submissions.DesignDTO, error) {
		return &submissions.DesignDTO{ID: id, DesignerID: owner.UserID, Status: enums.SubmissionStatusDraft}, nil
	}}
	params := map[string]string{"designID": draftID.String()}

	rec := httptest.NewRecorder()
	GetDesign(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/designs/"+draftID.String(), nil, nil, params))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	GetDesign(svc, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/designs/"+draftID.String(), nil, &owner, params))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRejectDesignRequiresReason(t *testing.T) {
	admin := adminActor()
	designID := uuid.New()
	called := false
	svc := &fakeSubmissions{rejectFn: func(_ auth.Actor, id uuid.UUID, reason string) (*submissions.DesignDTO, error) {
		called = true
		assert.Equal(t, designID, id)
		assert.Equal(t, "off-brand", reason)
		return &submissions.DesignDTO{ID: id, Status: enums.SubmissionStatusRejected}, nil
	}}
	params := map[string]string{"designID": designID.String()}

	rec := httptest.NewRecorder()
	RejectDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", map[string]any{}, &admin, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = httptest.NewRecorder()
	RejectDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", map[string]any{"reason": "off-brand"}, &admin, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestConfigurePricingDecodesSchedule(t *testing.T) {
	admin := adminActor()
	designID := uuid.New()
	var got submissions.PricingInput
	svc := &fakeSubmissions{pricingFn: func(_ auth.Actor, _ uuid.UUID, input submissions.PricingInput) (*submissions.DesignDTO, error) {
		got = input
		return &submissions.DesignDTO{ID: designID}, nil
	}}

	body := map[string]any{
		"tier_schedule": []map[string]any{
			{"tier": 1, "min_quantity": 1, "max_quantity": 50, "unit_price": "29.99"},
			{"tier": 2, "min_quantity": 51, "unit_price": "24.99"},
		},
		"base_unit_cost": "12.00",
		"royalty_rate":   "0.10",
		"goal_threshold": 150,
	}
	rec := httptest.NewRecorder()
	ConfigureDesignPricing(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", body, &admin, map[string]string{"designID": designID.String()}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, got.TierSchedule, 2)
	assert.True(t, got.TierSchedule[1].UnitPrice.Equal(decimal.RequireFromString("24.99")))
	assert.Nil(t, got.TierSchedule[1].MaxQuantity)
	require.NotNil(t, got.RoyaltyRate)
	assert.Equal(t, "0.1", got.RoyaltyRate.String())
	require.NotNil(t, got.GoalThreshold)
	assert.Equal(t, 150, *got.GoalThreshold)
}

func TestDesignActionMapsServiceErrors(t *testing.T) {
	admin := adminActor()
	svc := &fakeSubmissions{approveFn: func(auth.Actor, uuid.UUID) (*submissions.DesignDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot approve from draft")
	}}

	rec := httptest.NewRecorder()
	ApproveDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", nil, &admin, map[string]string{"designID": uuid.NewString()}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), errorCode(t, rec))

	rec = httptest.NewRecorder()
	ApproveDesign(svc, testLogger())(rec, newRequest(t, http.MethodPost, "/", nil, nil, map[string]string{"designID": uuid.NewString()}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
