package verification

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

type fakeProvider struct {
	status     string
	statusErr  error
	created    int
	deleted    []string
	createErr  error
	nextID     string
	nextURL    string
	deletedErr error
}

func (f *fakeProvider) CreateSession(_ context.Context, _ uuid.UUID, _ string) (*ProviderSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &ProviderSession{SessionID: f.nextID, SessionURL: f.nextURL, Status: models.VerificationStatusCreated}, nil
}

func (f *fakeProvider) GetStatus(_ context.Context, _ string) (string, error) {
	return f.status, f.statusErr
}

func (f *fakeProvider) DeleteSession(_ context.Context, sessionID string) error {
	if f.deletedErr != nil {
		return f.deletedErr
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

// fakeCache applies the same validity predicate the Redis store applies.
type fakeCache struct {
	sessions map[uuid.UUID]*models.CachedVerificationSession
	now      func() time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{sessions: make(map[uuid.UUID]*models.CachedVerificationSession), now: time.Now}
}

func (f *fakeCache) Save(_ context.Context, s *models.CachedVerificationSession) error {
	f.sessions[s.UserID] = s
	return nil
}

func (f *fakeCache) Get(_ context.Context, userID uuid.UUID) (*models.CachedVerificationSession, error) {
	s := f.sessions[userID]
	if !s.Valid(userID, f.now()) {
		return nil, nil
	}
	return s, nil
}

func (f *fakeCache) Clear(_ context.Context, userID uuid.UUID) error {
	delete(f.sessions, userID)
	return nil
}

type fakeVerifier struct {
	verified map[uuid.UUID]bool
}

func (f *fakeVerifier) SetIDVerified(_ context.Context, userID uuid.UUID, v bool) error {
	if f.verified == nil {
		f.verified = make(map[uuid.UUID]bool)
	}
	f.verified[userID] = v
	return nil
}

func TestCreateSessionCachesHandle(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_1", nextURL: "https://verify.example/sess_1"}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	userID := uuid.New()

	res, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)
	require.Equal(t, "sess_1", res.SessionID)
	require.False(t, res.Resumed)

	cached, err := cache.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Equal(t, "sess_1", cached.SessionID)
}

func TestCreateSessionResumesValidCachedSession(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_2"}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	res, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)
	require.True(t, res.Resumed)
	require.Equal(t, 1, provider.created)
}

func TestCreateSessionIgnoresExpiredCachedSession(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_3"}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	userID := uuid.New()

	cache.sessions[userID] = &models.CachedVerificationSession{
		SessionID: "sess_old",
		UserID:    userID,
		IssuedAt:  time.Now().Add(-61 * time.Minute),
	}

	res, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)
	require.False(t, res.Resumed)
	require.Equal(t, "sess_3", res.SessionID)
}

func TestCreateSessionProviderFailureIsNotRetried(t *testing.T) {
	provider := &fakeProvider{createErr: apperr.ErrUpstream}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())

	_, err := m.CreateSession(context.Background(), uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrUpstream)
	require.Equal(t, 0, provider.created)
}

func TestCheckStatusApprovedVerifiesUserAndClearsCache(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_4", status: models.VerificationStatusApproved}
	cache := newFakeCache()
	verifier := &fakeVerifier{}
	m := NewManager(provider, cache, verifier, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	res, err := m.CheckStatus(context.Background(), userID, "sess_4")
	require.NoError(t, err)
	require.Equal(t, models.VerificationStatusApproved, res.Status)
	require.True(t, res.IDVerified)
	require.True(t, verifier.verified[userID])

	cached, _ := cache.Get(context.Background(), userID)
	require.Nil(t, cached)
}

func TestCheckStatusDeclinedClearsCacheWithoutVerifying(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_5", status: models.VerificationStatusDeclined}
	cache := newFakeCache()
	verifier := &fakeVerifier{}
	m := NewManager(provider, cache, verifier, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	res, err := m.CheckStatus(context.Background(), userID, "sess_5")
	require.NoError(t, err)
	require.False(t, res.IDVerified)
	require.False(t, verifier.verified[userID])

	cached, _ := cache.Get(context.Background(), userID)
	require.Nil(t, cached)
}

func TestCheckStatusPendingKeepsSession(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_6", status: models.VerificationStatusPending}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	_, err = m.CheckStatus(context.Background(), userID, "sess_6")
	require.NoError(t, err)

	cached, _ := cache.Get(context.Background(), userID)
	require.NotNil(t, cached)
}

func TestCheckStatusRejectsForeignSession(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_7", status: models.VerificationStatusApproved}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	owner := uuid.New()

	_, err := m.CreateSession(context.Background(), owner, "")
	require.NoError(t, err)

	_, err = m.CheckStatus(context.Background(), uuid.New(), "sess_7")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckStatusProviderErrorLeavesStateUntouched(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_8", statusErr: errors.New("timeout")}
	cache := newFakeCache()
	verifier := &fakeVerifier{}
	m := NewManager(provider, cache, verifier, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	_, err = m.CheckStatus(context.Background(), userID, "sess_8")
	require.Error(t, err)
	require.False(t, verifier.verified[userID])

	cached, _ := cache.Get(context.Background(), userID)
	require.NotNil(t, cached)
}

func TestDeleteSession(t *testing.T) {
	provider := &fakeProvider{nextID: "sess_9"}
	cache := newFakeCache()
	m := NewManager(provider, cache, &fakeVerifier{}, zap.NewNop())
	userID := uuid.New()

	_, err := m.CreateSession(context.Background(), userID, "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteSession(context.Background(), userID, "sess_9"))
	require.Equal(t, []string{"sess_9"}, provider.deleted)

	cached, _ := cache.Get(context.Background(), userID)
	require.Nil(t, cached)

	require.ErrorIs(t, m.DeleteSession(context.Background(), userID, "sess_9"), apperr.ErrNotFound)
}
