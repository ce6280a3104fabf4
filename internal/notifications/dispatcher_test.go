package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/queue"
)

type fakeUsers struct{ users map[uuid.UUID]*models.User }

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

type fakeAdmins struct{ admins map[uuid.UUID][]uuid.UUID }

func (f *fakeAdmins) ListAdminUserIDs(_ context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return f.admins[orgID], nil
}

type fakeParticipants struct{ byEvent map[uuid.UUID][]uuid.UUID }

func (f *fakeParticipants) ListUserIDsByEvent(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return f.byEvent[eventID], nil
}

type fakeNotifStore struct {
	rows    []*models.Notification
	failFor map[uuid.UUID]bool
}

func (f *fakeNotifStore) Insert(_ context.Context, n *models.Notification) error {
	if f.failFor[n.UserID] {
		return errors.New("insert failed")
	}
	f.rows = append(f.rows, n)
	return nil
}

type fakePusher struct{ pushed []uuid.UUID }

func (f *fakePusher) Push(userID uuid.UUID, _ *models.Notification) {
	f.pushed = append(f.pushed, userID)
}

type fakeEmails struct{ payloads []queue.EmailPayload }

func (f *fakeEmails) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

type dispatcherFixture struct {
	users        *fakeUsers
	admins       *fakeAdmins
	participants *fakeParticipants
	store        *fakeNotifStore
	pusher       *fakePusher
	emails       *fakeEmails
	dispatcher   *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		users:        &fakeUsers{users: make(map[uuid.UUID]*models.User)},
		admins:       &fakeAdmins{admins: make(map[uuid.UUID][]uuid.UUID)},
		participants: &fakeParticipants{byEvent: make(map[uuid.UUID][]uuid.UUID)},
		store:        &fakeNotifStore{failFor: make(map[uuid.UUID]bool)},
		pusher:       &fakePusher{},
		emails:       &fakeEmails{},
	}
	f.dispatcher = NewDispatcher(f.users, f.admins, f.participants, f.store, f.pusher, f.emails, zap.NewNop())
	return f
}

func (f *dispatcherFixture) addUser(optIn bool, lang string) uuid.UUID {
	id := uuid.New()
	f.users.users[id] = &models.User{
		ID:                id,
		Email:             id.String() + "@example.org",
		FullName:          "User " + id.String()[:8],
		EmailOptIn:        optIn,
		PreferredLanguage: lang,
	}
	return id
}

func TestDispatchToSingleUser(t *testing.T) {
	f := newDispatcherFixture()
	userID := f.addUser(true, models.LangFR)

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:      models.NotificationTypeCertificateReady,
		UserID:    &userID,
		EventName: "Collecte de fonds",
		ActionURL: "https://certs.example/abc",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.NotificationsSent)

	require.Len(t, f.store.rows, 1)
	row := f.store.rows[0]
	assert.Equal(t, userID, row.UserID)
	assert.Contains(t, row.MessageFR, "Collecte de fonds")
	assert.Contains(t, row.MessageEN, "Collecte de fonds")
	assert.Equal(t, "https://certs.example/abc", row.ActionURL)

	require.Equal(t, []uuid.UUID{userID}, f.pusher.pushed)
	require.Len(t, f.emails.payloads, 1)
	assert.Equal(t, "Votre attestation est disponible", f.emails.payloads[0].Subject)
}

func TestDispatchToOrgAdmins(t *testing.T) {
	f := newDispatcherFixture()
	orgID := uuid.New()
	a := f.addUser(false, models.LangEN)
	b := f.addUser(false, models.LangEN)
	f.admins.admins[orgID] = []uuid.UUID{a, b}

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:            models.NotificationTypeOrgAnnouncement,
		OrganizationID:  &orgID,
		CustomMessageEN: "Quarterly report available",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.NotificationsSent)
	require.Len(t, f.store.rows, 2)
	// No opt-in, no email leg.
	require.Empty(t, f.emails.payloads)
}

func TestDispatchToEventParticipants(t *testing.T) {
	f := newDispatcherFixture()
	eventID := uuid.New()
	a := f.addUser(false, models.LangFR)
	b := f.addUser(false, models.LangFR)
	c := f.addUser(false, models.LangFR)
	f.participants.byEvent[eventID] = []uuid.UUID{a, b, c}

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:               models.NotificationTypeEventUpdate,
		EventID:            &eventID,
		NotifyParticipants: true,
		EventName:          "Maraude",
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.NotificationsSent)
}

func TestDispatchEmptyRecipientSetSucceeds(t *testing.T) {
	f := newDispatcherFixture()
	eventID := uuid.New()

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:               models.NotificationTypeEventUpdate,
		EventID:            &eventID,
		NotifyParticipants: true,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 0, res.NotificationsSent)
	require.Empty(t, res.Results)
}

func TestDispatchSkipsUnknownRecipient(t *testing.T) {
	f := newDispatcherFixture()
	orgID := uuid.New()
	known := f.addUser(false, models.LangEN)
	f.admins.admins[orgID] = []uuid.UUID{known, uuid.New()}

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:            models.NotificationTypeOrgAnnouncement,
		OrganizationID:  &orgID,
		CustomMessageEN: "hello",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.NotificationsSent)
	require.Len(t, res.Results, 2)

	statuses := map[string]int{}
	for _, r := range res.Results {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[DeliverySent])
	assert.Equal(t, 1, statuses[DeliverySkipped])
}

func TestDispatchPartialStoreFailure(t *testing.T) {
	f := newDispatcherFixture()
	orgID := uuid.New()
	good := f.addUser(false, models.LangEN)
	bad := f.addUser(false, models.LangEN)
	f.store.failFor[bad] = true
	f.admins.admins[orgID] = []uuid.UUID{good, bad}

	res, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:            models.NotificationTypeOrgAnnouncement,
		OrganizationID:  &orgID,
		CustomMessageEN: "hello",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.NotificationsSent)
}

func TestDispatchRejectsAmbiguousAddressing(t *testing.T) {
	f := newDispatcherFixture()
	userID := f.addUser(false, models.LangEN)
	orgID := uuid.New()

	_, err := f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type:           models.NotificationTypeOrgAnnouncement,
		UserID:         &userID,
		OrganizationID: &orgID,
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.dispatcher.Dispatch(context.Background(), queue.NotificationPayload{
		Type: models.NotificationTypeOrgAnnouncement,
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestMessagesForCustomOverride(t *testing.T) {
	fr, en := messagesFor(queue.NotificationPayload{
		Type:            models.NotificationTypeEventUpdate,
		CustomMessageFR: "Horaire modifié",
	})
	assert.Equal(t, "Horaire modifié", fr)
	assert.Equal(t, "Horaire modifié", en)

	fr, en = messagesFor(queue.NotificationPayload{
		Type:            models.NotificationTypeEventUpdate,
		CustomMessageFR: "Horaire modifié",
		CustomMessageEN: "Schedule changed",
	})
	assert.Equal(t, "Horaire modifié", fr)
	assert.Equal(t, "Schedule changed", en)
}
