package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
)

// inboxStub records the last call and replays canned results.
type inboxStub struct {
	listed   notifications.ListParams
	readUser uuid.UUID
	readID   uuid.UUID
	updated  int64
	err      error
}

func (s *inboxStub) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listed = params
	if s.err != nil {
		return nil, s.err
	}
	return &notifications.ListResult{Unread: 2}, nil
}

func (s *inboxStub) MarkRead(_ context.Context, userID, notificationID uuid.UUID) error {
	s.readUser, s.readID = userID, notificationID
	return s.err
}

func (s *inboxStub) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.readUser = userID
	return s.updated, s.err
}

func TestMarkNotificationRead(t *testing.T) {
	actor := memberActor()
	id := uuid.New()
	inbox := &inboxStub{}

	rec := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/api/v1/notifications/"+id.String()+"/read", nil, &actor, map[string]string{"notificationID": id.String()})
	MarkNotificationRead(inbox, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, actor.UserID, inbox.readUser)
	assert.Equal(t, id, inbox.readID)
	var body map[string]bool
	decodeData(t, rec, &body)
	assert.True(t, body["read"])
}

func TestMarkNotificationReadRejects(t *testing.T) {
	actor := memberActor()
	cases := []struct {
		name      string
		anonymous bool
		param     string
		svcErr error
		status int
	}{
		{name: "anonymous", anonymous: true, param: uuid.NewString(), status: http.StatusUnauthorized},
		{name: "bad id", param: "bad", status: http.StatusBadRequest},
		{name: "someone else's", param: uuid.NewString(), svcErr: pkgerrors.New(pkgerrors.CodeNotFound, "notification not found"), status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := &actor
			if tc.anonymous {
				caller = nil
			}
			req := newRequest(t, http.MethodPost, "/", nil, caller, map[string]string{"notificationID": tc.param})
			rec := httptest.NewRecorder()
			MarkNotificationRead(&inboxStub{err: tc.svcErr}, testLogger())(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	actor := memberActor()
	inbox := &inboxStub{updated: 3}

	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(inbox, testLogger())(rec, newRequest(t, http.MethodPost, "/api/v1/notifications/read-all", nil, &actor, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actor.UserID, inbox.readUser)
	var body map[string]int64
	decodeData(t, rec, &body)
	assert.Equal(t, int64(3), body["updated"])
}

func TestListNotificationsPassesFilters(t *testing.T) {
	actor := memberActor()
	inbox := &inboxStub{}

	rec := httptest.NewRecorder()
	ListNotifications(inbox, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true&cursor=abc", nil, &actor, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notifications.ListParams{UserID: actor.UserID, Limit: 5, UnreadOnly: true, Cursor: "abc"}, inbox.listed)
	var body notifications.ListResult
	decodeData(t, rec, &body)
	assert.Equal(t, int64(2), body.Unread)
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	actor := memberActor()
	for _, query := range []string{"?limit=0", "?limit=abc", "?unreadOnly=maybe"} {
		rec := httptest.NewRecorder()
		ListNotifications(&inboxStub{}, testLogger())(rec, newRequest(t, http.MethodGet, "/api/v1/notifications"+query, nil, &actor, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestNotificationsWithoutServiceFails(t *testing.T) {
	actor := memberActor()
	rec := httptest.NewRecorder()
	ListNotifications(nil, testLogger())(rec, newRequest(t, http.MethodGet, "/", nil, &actor, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
