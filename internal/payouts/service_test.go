package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
)

type recordingNotifier struct {
	sent []enums.NotificationTemplate
}

func (r *recordingNotifier) Notify(_ context.Context, _ *gorm.DB, _ uuid.UUID, template enums.NotificationTemplate, _ any) error {
	r.sent = append(r.sent, template)
	return nil
}

var (
	admin   = auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	testNow = time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*gorm.DB, Service, *recordingNotifier) {
	t.Helper()
	conn := dbtest.Open(t)
	notify := &recordingNotifier{}
	svc, err := NewService(
		NewRepository(conn),
		db.Wrap(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		notify,
		decimal.RequireFromString("5000"),
		logger.New(logger.Options{ServiceName: "test"}),
	)
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testNow }
	return conn, svc, notify
}

func seedPayout(t *testing.T, conn *gorm.DB, designerID uuid.UUID) *models.PayoutRecord {
	t.Helper()
	payout := &models.PayoutRecord{
		DesignID:   uuid.New(),
		DesignerID: designerID,
		Amount:     decimal.RequireFromString("120.50"),
		RawRoyalty: decimal.RequireFromString("120.50"),
		Quarter:    "2026-Q4",
		Status:     enums.PayoutStatusPending,
	}
	require.NoError(t, conn.Create(payout).Error)
	return payout
}

func TestMarkCompletedNotifiesOnce(t *testing.T) {
	conn, svc, notify := newTestService(t)
	payout := seedPayout(t, conn, uuid.New())
	ctx := context.Background()

	done, err := svc.MarkCompleted(ctx, admin, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusCompleted, done.Status)
	require.NotNil(t, done.PaidAt)

	_, err = svc.MarkCompleted(ctx, admin, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, []enums.NotificationTemplate{enums.NotificationPayoutSent}, notify.sent)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPayoutStatusChanged).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	_, err = svc.MarkFailed(ctx, admin, payout.ID, "bank rejected")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestMarkFailedThenCompleted(t *testing.T) {
	conn, svc, _ := newTestService(t)
	payout := seedPayout(t, conn, uuid.New())
	ctx := context.Background()

	_, err := svc.MarkFailed(ctx, admin, payout.ID, " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	failed, err := svc.MarkFailed(ctx, admin, payout.ID, "account closed")
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)

	done, err := svc.MarkCompleted(ctx, admin, payout.ID)
	require.NoError(t, err)
	assert.Nil(t, done.FailureReason)
}

func TestPayoutVisibility(t *testing.T) {
	conn, svc, _ := newTestService(t)
	designer := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleDesigner}
	payout := seedPayout(t, conn, designer.UserID)
	seedPayout(t, conn, designer.UserID)
	ctx := context.Background()

	rows, err := svc.ListForDesigner(ctx, designer, designer.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.ListForDesigner(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleDesigner}, designer.UserID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	got, err := svc.Get(ctx, designer, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.ID, got.ID)

	_, err = svc.MarkCompleted(ctx, designer, payout.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestSetQuarterlyCapKeepsEarned(t *testing.T) {
	conn, svc, _ := newTestService(t)
	designerID := uuid.New()
	ctx := context.Background()

	view, err := svc.GetCap(ctx, admin, designerID)
	require.NoError(t, err)
	assert.True(t, view.Cap.Equal(decimal.RequireFromString("5000")))
	assert.Equal(t, "2026-Q4", view.Quarter)

	require.NoError(t, conn.Create(&models.DesignerProfile{
		UserID:                    designerID,
		QuarterlyBonusCap:         decimal.RequireFromString("1000"),
		CurrentQuarterBonusEarned: decimal.RequireFromString("400"),
		BonusQuarter:              "2026-Q4",
	}).Error)

	view, err = svc.SetQuarterlyCap(ctx, admin, designerID, decimal.RequireFromString("750"))
	require.NoError(t, err)
	assert.True(t, view.Cap.Equal(decimal.RequireFromString("750")))
	assert.True(t, view.Earned.Equal(decimal.RequireFromString("400")))
	assert.True(t, view.Headroom.Equal(decimal.RequireFromString("350")))

	_, err = svc.SetQuarterlyCap(ctx, admin, designerID, decimal.RequireFromString("-1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetCapResetsStaleQuarter(t *testing.T) {
	conn, svc, _ := newTestService(t)
	designerID := uuid.New()
	require.NoError(t, conn.Create(&models.DesignerProfile{
		UserID:                    designerID,
		QuarterlyBonusCap:         decimal.RequireFromString("1000"),
		CurrentQuarterBonusEarned: decimal.RequireFromString("1000"),
		BonusQuarter:              "2026-Q3",
	}).Error)

	view, err := svc.GetCap(context.Background(), auth.Actor{UserID: designerID, Role: enums.UserRoleDesigner}, designerID)
	require.NoError(t, err)
	assert.True(t, view.Earned.IsZero())
	assert.True(t, view.Headroom.Equal(decimal.RequireFromString("1000")))
}
