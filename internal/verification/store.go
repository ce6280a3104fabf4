package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"

	"github.com/benevia/backend/internal/models"
	redispkg "github.com/benevia/backend/pkg/redis"
)

const sessionKeyPrefix = "verification:session:"

// Store caches one verification session handle per user in Redis. The cache
// enforces the ownership and age checks on every read, so callers never see
// a handle that fails the validity predicate.
type Store struct {
	rdb *redispkg.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a session cache with the given handle TTL.
func NewStore(rdb *redispkg.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = models.CachedSessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

func sessionKey(userID uuid.UUID) string {
	return sessionKeyPrefix + userID.String()
}

// Save caches the session handle under the user's key.
func (s *Store) Save(ctx context.Context, session *models.CachedVerificationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// Get returns the user's cached session handle, or nil when there is none or
// the cached handle is no longer valid. An invalid handle is evicted.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*models.CachedVerificationSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	var session models.CachedVerificationSession
	if err := json.Unmarshal(data, &session); err != nil {
		_ = s.Clear(ctx, userID)
		return nil, nil
	}
	if !session.Valid(userID, s.now()) {
		_ = s.Clear(ctx, userID)
		return nil, nil
	}
	return &session, nil
}

// Clear removes the user's cached session handle.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.rdb.Del(ctx, sessionKey(userID)).Err()
}
