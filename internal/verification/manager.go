package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
	"github.com/benevia/backend/pkg/apperr"
)

// ProviderClient is the provider-side session API.
type ProviderClient interface {
	CreateSession(ctx context.Context, userID uuid.UUID, callbackURL string) (*ProviderSession, error)
	GetStatus(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionCache stores at most one session handle per user.
type SessionCache interface {
	Save(ctx context.Context, session *models.CachedVerificationSession) error
	Get(ctx context.Context, userID uuid.UUID) (*models.CachedVerificationSession, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// UserVerifier flips the user's verified flag when the provider approves.
type UserVerifier interface {
	SetIDVerified(ctx context.Context, userID uuid.UUID, verified bool) error
}

// SessionResult is what the API returns for a created or resumed session.
type SessionResult struct {
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url,omitempty"`
	Status     string `json:"status"`
	Resumed    bool   `json:"resumed"`
}

// StatusResult is the outcome of a status check.
type StatusResult struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	IDVerified bool   `json:"id_verified"`
}

// Manager coordinates identity-proofing sessions between the provider, the
// local session cache, and the user record. Session status lives with the
// provider; the cache holds only the handle. Provider failures surface to the
// caller as-is, with no automatic retry or session re-creation.
type Manager struct {
	provider ProviderClient
	cache    SessionCache
	users    UserVerifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a verification manager.
func NewManager(provider ProviderClient, cache SessionCache, users UserVerifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{provider: provider, cache: cache, users: users, logger: logger, now: time.Now}
}

// CreateSession opens a proofing session for the user. A still-valid cached
// session is resumed instead of opening a second provider session.
func (m *Manager) CreateSession(ctx context.Context, userID uuid.UUID, callbackURL string) (*SessionResult, error) {
	cached, err := m.cache.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	if cached != nil {
		return &SessionResult{
			SessionID: cached.SessionID,
			Status:    models.VerificationStatusPending,
			Resumed:   true,
		}, nil
	}

	session, err := m.provider.CreateSession(ctx, userID, callbackURL)
	if err != nil {
		return nil, err
	}
	handle := &models.CachedVerificationSession{
		SessionID: session.SessionID,
		UserID:    userID,
		IssuedAt:  m.now(),
	}
	if err := m.cache.Save(ctx, handle); err != nil {
		// The provider session exists either way; losing the cache only costs
		// the user a restart.
		m.logger.Error("cache session failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
	return &SessionResult{
		SessionID:  session.SessionID,
		SessionURL: session.SessionURL,
		Status:     session.Status,
	}, nil
}

// CheckStatus polls the provider for the session's status and applies the
// terminal transitions: approved marks the user verified and drops the handle,
// declined and expired drop the handle, everything else is a pure read.
func (m *Manager) CheckStatus(ctx context.Context, userID uuid.UUID, sessionID string) (*StatusResult, error) {
	if err := m.requireOwnership(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	status, err := m.provider.GetStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{SessionID: sessionID, Status: status}
	switch status {
	case models.VerificationStatusApproved:
		if err := m.users.SetIDVerified(ctx, userID, true); err != nil {
			return nil, fmt.Errorf("mark user verified: %w", err)
		}
		result.IDVerified = true
		m.clearCache(ctx, userID)
	case models.VerificationStatusDeclined, models.VerificationStatusExpired:
		m.clearCache(ctx, userID)
	}
	return result, nil
}

// DeleteSession discards the user's session with the provider and drops the
// cached handle.
func (m *Manager) DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if err := m.requireOwnership(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := m.provider.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	m.clearCache(ctx, userID)
	return nil
}

// requireOwnership checks that sessionID is the user's cached session. The
// cache already enforces the validity predicate on read, so a missing or
// stale handle and a foreign handle both come back as not found.
func (m *Manager) requireOwnership(ctx context.Context, userID uuid.UUID, sessionID string) error {
	cached, err := m.cache.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read session cache: %w", err)
	}
	if cached == nil || cached.SessionID != sessionID {
		return apperr.ErrNotFound
	}
	return nil
}

func (m *Manager) clearCache(ctx context.Context, userID uuid.UUID) {
	if err := m.cache.Clear(ctx, userID); err != nil {
		m.logger.Error("clear session cache failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
}
