package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/queue"
)

// fakeStore is an in-memory RegistrationSource + TransitionStore that mirrors
// the conditional-update semantics of the SQL repository: each transition
// checks the guard and mutates under one lock, so racing callers observe
// ok=false exactly like a zero-rows UPDATE.
type fakeStore struct {
	mu      sync.Mutex
	regs    map[uuid.UUID]*models.Registration
	byToken map[string]uuid.UUID
	now     func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		regs:    make(map[uuid.UUID]*models.Registration),
		byToken: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *fakeStore) add(reg *models.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg.ID] = reg
	s.byToken[reg.QRToken] = reg.ID
}

func (s *fakeStore) snapshot(id uuid.UUID) *models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil
	}
	cp := *reg
	return &cp
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	return s.snapshot(id), nil
}

func (s *fakeStore) GetByQRToken(_ context.Context, token string) (*models.Registration, error) {
	s.mu.Lock()
	id, ok := s.byToken[token]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.snapshot(id), nil
}

func (s *fakeStore) RecordArrival(_ context.Context, id uuid.UUID) (*time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.RegistrationStatusRegistered || reg.CertificationStartAt != nil {
		return nil, false, nil
	}
	t := s.now()
	reg.CertificationStartAt = &t
	return &t, true, nil
}

func (s *fakeStore) RecordDeparture(_ context.Context, id, validatedBy uuid.UUID) (*time.Time, *time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.RegistrationStatusRegistered ||
		reg.CertificationStartAt == nil || reg.CertificationEndAt != nil {
		return nil, nil, false, nil
	}
	t := s.now()
	reg.CertificationEndAt = &t
	reg.Status = models.RegistrationStatusCertified
	reg.ValidatedBy = &validatedBy
	return reg.CertificationStartAt, &t, true, nil
}

func (s *fakeStore) SelfCertify(_ context.Context, id uuid.UUID) (*time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok || reg.Status != models.RegistrationStatusRegistered || reg.CertificationStartAt != nil {
		return nil, false, nil
	}
	t := s.now()
	reg.CertificationStartAt = &t
	reg.CertificationEndAt = &t
	reg.Status = models.RegistrationStatusSelfCertified
	return &t, true, nil
}

type fakeEvents struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

type fakeMembers struct {
	members map[string]bool
	err     error
}

func memberKey(orgID, userID uuid.UUID) string { return orgID.String() + "|" + userID.String() }

func (f *fakeMembers) IsMember(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[memberKey(orgID, userID)], nil
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

type fakeCertQueue struct {
	mu       sync.Mutex
	payloads []queue.CertificateIssuePayload
}

func (f *fakeCertQueue) EnqueueCertificateIssue(_ context.Context, p queue.CertificateIssuePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}
