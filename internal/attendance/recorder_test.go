package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
)

type recorderFixture struct {
	store    *fakeStore
	queue    *fakeCertQueue
	members  *fakeMembers
	recorder *Recorder

	orgID      uuid.UUID
	operatorID uuid.UUID
	event      *models.Event
	reg        *models.Registration
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	f := &recorderFixture{
		store:      newFakeStore(),
		queue:      &fakeCertQueue{},
		orgID:      uuid.New(),
		operatorID: uuid.New(),
	}
	volunteerID := uuid.New()
	f.event = &models.Event{
		ID:             uuid.New(),
		OrganizationID: f.orgID,
		Title:          "Park cleanup",
		StartsAt:       time.Now().Add(-2 * time.Hour),
		EndsAt:         time.Now().Add(2 * time.Hour),
	}
	f.reg = &models.Registration{
		ID:      uuid.New(),
		UserID:  volunteerID,
		EventID: f.event.ID,
		Status:  models.RegistrationStatusRegistered,
		QRToken: "tok-" + uuid.New().String(),
	}
	f.store.add(f.reg)

	events := &fakeEvents{events: map[uuid.UUID]*models.Event{f.event.ID: f.event}}
	f.members = &fakeMembers{members: map[string]bool{memberKey(f.orgID, f.operatorID): true}}
	users := &fakeUsers{users: map[uuid.UUID]*models.User{
		volunteerID: {ID: volunteerID, FullName: "Ada Volunteer"},
	}}
	f.recorder = NewRecorder(f.store, f.store, events, f.members, users, f.queue, zap.NewNop())
	return f
}

func TestScanTwoPhaseLifecycle(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	// First scan: arrival.
	res, err := f.recorder.Scan(ctx, f.operatorID, f.reg.QRToken)
	require.NoError(t, err)
	require.Equal(t, ScanTypeArrival, res.ScanType)
	require.NotNil(t, res.ArrivalTime)
	require.Nil(t, res.DepartureTime)
	require.Equal(t, "Ada Volunteer", res.UserName)
	require.Equal(t, "Park cleanup", res.EventName)

	// Second scan: departure with duration.
	res, err = f.recorder.Scan(ctx, f.operatorID, f.reg.QRToken)
	require.NoError(t, err)
	require.Equal(t, ScanTypeDeparture, res.ScanType)
	require.NotNil(t, res.ArrivalTime)
	require.NotNil(t, res.DepartureTime)
	require.NotNil(t, res.DurationMinutes)
	require.GreaterOrEqual(t, *res.DurationMinutes, 0)
	require.False(t, res.DepartureTime.Before(*res.ArrivalTime))

	stored := f.store.snapshot(f.reg.ID)
	require.Equal(t, models.RegistrationStatusCertified, stored.Status)
	require.Equal(t, f.operatorID, *stored.ValidatedBy)
	firstStart, firstEnd := *stored.CertificationStartAt, *stored.CertificationEndAt

	// Departure triggers certificate generation.
	require.Len(t, f.queue.payloads, 1)
	require.Equal(t, f.reg.ID, f.queue.payloads[0].RegistrationID)

	// Third scan: idempotent read, timestamps unchanged, no new job.
	res, err = f.recorder.Scan(ctx, f.operatorID, f.reg.QRToken)
	require.NoError(t, err)
	require.Equal(t, ScanTypeAlreadyCertified, res.ScanType)
	require.Equal(t, firstStart, *res.ArrivalTime)
	require.Equal(t, firstEnd, *res.DepartureTime)
	require.Len(t, f.queue.payloads, 1)

	stored = f.store.snapshot(f.reg.ID)
	require.Equal(t, firstStart, *stored.CertificationStartAt)
	require.Equal(t, firstEnd, *stored.CertificationEndAt)
}

func TestScanPayloadShapes(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	res, err := f.recorder.Scan(ctx, f.operatorID, `{"qr_token":"`+f.reg.QRToken+`"}`)
	require.NoError(t, err)
	require.Equal(t, ScanTypeArrival, res.ScanType)

	res, err = f.recorder.Scan(ctx, f.operatorID, "https://app.benevia.app/verify/x?token="+f.reg.QRToken)
	require.NoError(t, err)
	require.Equal(t, ScanTypeDeparture, res.ScanType)
}

func TestScanUnknownToken(t *testing.T) {
	f := newRecorderFixture(t)
	_, err := f.recorder.Scan(context.Background(), f.operatorID, "no-such-token")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestScanRequiresOrgMembership(t *testing.T) {
	f := newRecorderFixture(t)
	outsider := uuid.New()
	_, err := f.recorder.Scan(context.Background(), outsider, f.reg.QRToken)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	// Authorization precedes mutation: nothing was written.
	stored := f.store.snapshot(f.reg.ID)
	require.Nil(t, stored.CertificationStartAt)
}

func TestScanMembershipLookupFailureIsNotUnauthorized(t *testing.T) {
	f := newRecorderFixture(t)
	f.members.err = errors.New("connection reset")

	_, err := f.recorder.Scan(context.Background(), f.operatorID, f.reg.QRToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, apperr.ErrUnauthorized)
	require.ErrorContains(t, err, "membership check")

	stored := f.store.snapshot(f.reg.ID)
	require.Nil(t, stored.CertificationStartAt)
}

func TestScanCancelledRegistration(t *testing.T) {
	f := newRecorderFixture(t)
	f.reg.Status = models.RegistrationStatusCancelled
	f.store.add(f.reg)

	_, err := f.recorder.Scan(context.Background(), f.operatorID, f.reg.QRToken)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Equal(t, "registration_cancelled", apperr.Reason(err))
}

func TestScanLostRaceReportsAlreadyCertified(t *testing.T) {
	f := newRecorderFixture(t)
	ctx := context.Background()

	// Simulate a concurrent scanner certifying between the state read and the
	// conditional update: pre-certify directly through the store.
	_, ok, err := f.store.RecordArrival(ctx, f.reg.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, _, ok, err = f.store.RecordDeparture(ctx, f.reg.ID, uuid.New())
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.recorder.Scan(ctx, f.operatorID, f.reg.QRToken)
	require.NoError(t, err)
	require.Equal(t, ScanTypeAlreadyCertified, res.ScanType)
}

func TestStateOf(t *testing.T) {
	now := time.Now()
	reg := &models.Registration{Status: models.RegistrationStatusRegistered}
	require.Equal(t, StateNotArrived, StateOf(reg))

	reg.CertificationStartAt = &now
	require.Equal(t, StateArrived, StateOf(reg))

	reg.CertificationEndAt = &now
	reg.Status = models.RegistrationStatusCertified
	require.Equal(t, StateCertified, StateOf(reg))

	selfCert := &models.Registration{
		Status:               models.RegistrationStatusSelfCertified,
		CertificationStartAt: &now,
		CertificationEndAt:   &now,
	}
	require.Equal(t, StateCertified, StateOf(selfCert))

	require.Equal(t, StateCancelled, StateOf(&models.Registration{Status: models.RegistrationStatusCancelled}))
}
