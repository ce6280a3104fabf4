package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/auth"
	"github.com/benevia/backend/internal/models"
)

type fakeAdminChecker struct {
	admins map[string]bool
	err    error
}

func adminKey(orgID, userID uuid.UUID) string { return orgID.String() + "|" + userID.String() }

func (f *fakeAdminChecker) IsAdmin(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.admins[adminKey(orgID, userID)], nil
}

type fakeEventResolver struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEventResolver) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

type handlerFixture struct {
	dispatcher *dispatcherFixture
	admins     *fakeAdminChecker
	events     *fakeEventResolver
	handler    *Handler

	callerID uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		dispatcher: newDispatcherFixture(),
		admins:     &fakeAdminChecker{admins: make(map[string]bool)},
		events:     &fakeEventResolver{events: make(map[uuid.UUID]*models.Event)},
		callerID:   uuid.New(),
	}
	f.handler = NewHandler(f.dispatcher.dispatcher, nil, f.admins, f.events, zap.NewNop())
	return f
}

// send posts the request as the fixture caller carrying the given platform role.
func (f *handlerFixture) send(t *testing.T, role models.Role, req SendRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/notifications/send", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(auth.ContextUserID, f.callerID)
	c.Set(auth.ContextUserRole, string(role))
	f.handler.Send(c)
	return w
}

func TestSendUserPayloadWithEventIDRequiresPlatformAdmin(t *testing.T) {
	f := newHandlerFixture(t)
	targetID := f.dispatcher.addUser(false, models.LangEN)
	eventID := uuid.New()
	orgID := uuid.New()
	f.events.events[eventID] = &models.Event{ID: eventID, OrganizationID: orgID}
	// Caller administers the event's organization but is not a platform admin.
	f.admins.admins[adminKey(orgID, f.callerID)] = true

	// user_id + event_id without notify_participants resolves as a direct-user
	// send, so the event-admin standing must not authorize it.
	w := f.send(t, models.RoleVolunteer, SendRequest{
		Type:    models.NotificationTypeEventUpdate,
		UserID:  &targetID,
		EventID: &eventID,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, f.dispatcher.store.rows)
	require.Empty(t, f.dispatcher.pusher.pushed)
}

func TestSendRejectsMultipleAddressingModes(t *testing.T) {
	f := newHandlerFixture(t)
	targetID := f.dispatcher.addUser(false, models.LangEN)
	eventID := uuid.New()

	w := f.send(t, models.RoleAdmin, SendRequest{
		Type:               models.NotificationTypeEventUpdate,
		UserID:             &targetID,
		EventID:            &eventID,
		NotifyParticipants: true,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, f.dispatcher.store.rows)
}

func TestSendRejectsEventIDWithoutNotifyParticipants(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	orgID := uuid.New()
	f.events.events[eventID] = &models.Event{ID: eventID, OrganizationID: orgID}
	f.admins.admins[adminKey(orgID, f.callerID)] = true

	w := f.send(t, models.RoleVolunteer, SendRequest{
		Type:    models.NotificationTypeEventUpdate,
		EventID: &eventID,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendEventParticipantsByOrgAdmin(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	orgID := uuid.New()
	f.events.events[eventID] = &models.Event{ID: eventID, OrganizationID: orgID}
	f.admins.admins[adminKey(orgID, f.callerID)] = true
	a := f.dispatcher.addUser(false, models.LangFR)
	f.dispatcher.participants.byEvent[eventID] = []uuid.UUID{a}

	w := f.send(t, models.RoleVolunteer, SendRequest{
		Type:               models.NotificationTypeEventUpdate,
		EventID:            &eventID,
		NotifyParticipants: true,
		EventName:          "Maraude",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.dispatcher.store.rows, 1)
}

func TestSendAdminLookupFailureIsServerError(t *testing.T) {
	f := newHandlerFixture(t)
	orgID := uuid.New()
	f.admins.err = errors.New("connection reset")

	w := f.send(t, models.RoleVolunteer, SendRequest{
		Type:           models.NotificationTypeOrgAnnouncement,
		OrganizationID: &orgID,
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Empty(t, f.dispatcher.store.rows)
}
