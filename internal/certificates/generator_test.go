package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
	"github.com/benevia/backend/pkg/queue"
)

type fakeRegStore struct {
	mu   sync.Mutex
	regs map[uuid.UUID]*models.Registration
}

func (f *fakeRegStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return nil, nil
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRegStore) SetCertificate(_ context.Context, regID, certID uuid.UUID, url string, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg := f.regs[regID]
	reg.CertificateID = &certID
	reg.CertificateURL = url
	reg.CertificateData = data
	return nil
}

type fakeUserSource struct{ users map[uuid.UUID]*models.User }

func (f *fakeUserSource) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

type fakeEventSource struct{ events map[uuid.UUID]*models.Event }

func (f *fakeEventSource) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

type fakeOrgSource struct {
	orgs    map[uuid.UUID]*models.Organization
	members map[uuid.UUID]string
}

func (f *fakeOrgSource) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return f.orgs[id], nil
}

func (f *fakeOrgSource) MemberName(_ context.Context, _, userID uuid.UUID) (string, string, error) {
	return f.members[userID], models.OrgRoleAdmin, nil
}

type fakeArtifacts struct {
	uploads map[string][]byte
}

func (f *fakeArtifacts) Upload(_ context.Context, _, key, _ string, body io.Reader, _ int64, _ bool) (string, error) {
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	data, _ := io.ReadAll(body)
	f.uploads[key] = data
	return "https://certs.example/" + key, nil
}

func (f *fakeArtifacts) CertificatesBucket() string { return "benevia-certificates" }

type fakeNotifQueue struct {
	payloads []queue.NotificationPayload
	err      error
}

func (f *fakeNotifQueue) EnqueueNotification(_ context.Context, p queue.NotificationPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type generatorFixture struct {
	regs      *fakeRegStore
	artifacts *fakeArtifacts
	notif     *fakeNotifQueue
	generator *Generator

	reg       *models.Registration
	user      *models.User
	event     *models.Event
	org       *models.Organization
	validator uuid.UUID
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()
	f := &generatorFixture{
		regs:      &fakeRegStore{regs: make(map[uuid.UUID]*models.Registration)},
		artifacts: &fakeArtifacts{},
		notif:     &fakeNotifQueue{},
		validator: uuid.New(),
	}
	orgID := uuid.New()
	f.org = &models.Organization{ID: orgID, Name: "Les Restos", LogoURL: "https://logos.example/restos.png"}
	f.event = &models.Event{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Title:          "Distribution alimentaire",
		LocationName:   "Centre Ville",
		StartsAt:       time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		EndsAt:         time.Date(2026, 5, 2, 17, 0, 0, 0, time.UTC),
	}
	f.user = &models.User{ID: uuid.New(), FullName: "Ada Volunteer", PreferredLanguage: models.LangFR}
	start := f.event.StartsAt.Add(15 * time.Minute)
	end := f.event.EndsAt.Add(-30 * time.Minute)
	f.reg = &models.Registration{
		ID:                   uuid.New(),
		UserID:               f.user.ID,
		EventID:              f.event.ID,
		Status:               models.RegistrationStatusCertified,
		CertificationStartAt: &start,
		CertificationEndAt:   &end,
		ValidatedBy:          &f.validator,
	}
	f.regs.regs[f.reg.ID] = f.reg

	f.generator = NewGenerator(
		f.regs,
		&fakeUserSource{users: map[uuid.UUID]*models.User{f.user.ID: f.user}},
		&fakeEventSource{events: map[uuid.UUID]*models.Event{f.event.ID: f.event}},
		&fakeOrgSource{
			orgs:    map[uuid.UUID]*models.Organization{orgID: f.org},
			members: map[uuid.UUID]string{f.validator: "Marc Admin"},
		},
		f.artifacts,
		f.notif,
		zap.NewNop(),
	)
	return f
}

func TestGenerateIssuesCertificate(t *testing.T) {
	f := newGeneratorFixture(t)

	res, err := f.generator.Generate(context.Background(), f.reg.ID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.CertificateID)
	require.Contains(t, res.CertificateURL, f.reg.UserID.String())
	require.Contains(t, res.CertificateURL, f.reg.ID.String())

	require.Equal(t, "Ada Volunteer", res.Snapshot.UserFullName)
	require.Equal(t, "Marc Admin", res.Snapshot.ValidatorName)
	require.False(t, res.Snapshot.IsSelfCertified)
	require.Equal(t, *f.reg.CertificationEndAt, res.Snapshot.CertifiedAt)

	key := "certificates/" + f.reg.UserID.String() + "/" + f.reg.ID.String() + "/certificate.html"
	html := f.artifacts.uploads[key]
	require.NotEmpty(t, html)
	assert.True(t, bytes.Contains(html, []byte("Ada Volunteer")))
	assert.True(t, bytes.Contains(html, []byte("Distribution alimentaire")))

	// Issuance notifies the certified user.
	require.Len(t, f.notif.payloads, 1)
	require.Equal(t, models.NotificationTypeCertificateReady, f.notif.payloads[0].Type)
	require.Equal(t, f.reg.UserID, *f.notif.payloads[0].UserID)

	stored, _ := f.regs.GetByID(context.Background(), f.reg.ID)
	require.Equal(t, res.CertificateID, *stored.CertificateID)
	require.Equal(t, res.CertificateURL, stored.CertificateURL)
	require.NotEmpty(t, stored.CertificateData)
}

func TestGenerateKeepsCertificateIDOnReissue(t *testing.T) {
	f := newGeneratorFixture(t)
	ctx := context.Background()

	first, err := f.generator.Generate(ctx, f.reg.ID)
	require.NoError(t, err)

	// A source correction regenerates under the same id and URL.
	second, err := f.generator.Generate(ctx, f.reg.ID)
	require.NoError(t, err)
	require.Equal(t, first.CertificateID, second.CertificateID)
	require.Equal(t, first.CertificateURL, second.CertificateURL)
}

func TestGenerateReflectsCurrentRows(t *testing.T) {
	f := newGeneratorFixture(t)
	ctx := context.Background()

	first, err := f.generator.Generate(ctx, f.reg.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada Volunteer", first.Snapshot.UserFullName)

	f.user.FullName = "Ada B. Volunteer"
	second, err := f.generator.Generate(ctx, f.reg.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada B. Volunteer", second.Snapshot.UserFullName)
}

func TestGenerateSelfCertifiedHasNoValidator(t *testing.T) {
	f := newGeneratorFixture(t)
	f.reg.Status = models.RegistrationStatusSelfCertified
	f.reg.ValidatedBy = nil

	res, err := f.generator.Generate(context.Background(), f.reg.ID)
	require.NoError(t, err)
	require.True(t, res.Snapshot.IsSelfCertified)
	require.Empty(t, res.Snapshot.ValidatorName)
	require.Empty(t, res.Snapshot.ValidatorRole)
}

func TestGenerateRejectsUncertifiedRegistration(t *testing.T) {
	f := newGeneratorFixture(t)
	f.reg.Status = models.RegistrationStatusRegistered
	f.reg.CertificationStartAt = nil
	f.reg.CertificationEndAt = nil

	_, err := f.generator.Generate(context.Background(), f.reg.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Empty(t, f.artifacts.uploads)
}

func TestGenerateUnknownRegistration(t *testing.T) {
	f := newGeneratorFixture(t)
	_, err := f.generator.Generate(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGenerateNotificationFailureDoesNotFailIssuance(t *testing.T) {
	f := newGeneratorFixture(t)
	f.notif.err = errors.New("queue down")

	res, err := f.generator.Generate(context.Background(), f.reg.ID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.CertificateID)

	stored, _ := f.regs.GetByID(context.Background(), f.reg.ID)
	require.NotNil(t, stored.CertificateID)
}

func TestBuildSnapshotIsPure(t *testing.T) {
	f := newGeneratorFixture(t)

	a, err := BuildSnapshot(f.user, f.event, f.org, f.reg, "Marc Admin", models.OrgRoleAdmin)
	require.NoError(t, err)
	b, err := BuildSnapshot(f.user, f.event, f.org, f.reg, "Marc Admin", models.OrgRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
