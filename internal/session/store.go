package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"natillera-bot/internal/cache"
)

// Store keeps conversation sessions in Redis, one JSON document per phone
// number. TTL enforcement lives entirely in Redis; an expired key simply
// reads back as no session.
type Store struct {
	redis      *cache.Redis
	logger     *slog.Logger
	pendingTTL time.Duration
	authTTL    time.Duration
}

// Config sets the lifetimes for the two session families.
type Config struct {
	PendingTTL time.Duration
	AuthTTL    time.Duration
}

// NewStore builds a session store over the shared Redis client.
func NewStore(redis *cache.Redis, cfg Config, logger *slog.Logger) *Store {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.AuthTTL <= 0 {
		cfg.AuthTTL = 60 * time.Minute
	}
	return &Store{
		redis:      redis,
		logger:     logger.With("component", "session"),
		pendingTTL: cfg.PendingTTL,
		authTTL:    cfg.AuthTTL,
	}
}

// Get loads the session for a phone, or nil when none is active.
func (s *Store) Get(ctx context.Context, phone string) (*Session, error) {
	var sess Session
	found, err := s.redis.GetJSON(ctx, sessionKey(phone), &sess)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session with a fresh TTL for its state. Writing over an
// existing key of a different state implicitly discards the old variant.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if err := s.redis.SetJSON(ctx, sessionKey(sess.Phone), sess, TTLFor(sess.State, s.pendingTTL, s.authTTL)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveKeepTTL rewrites the session without refreshing its lifetime. Used
// after rejected or unrecognized replies so a confused sender does not get
// unlimited time.
func (s *Store) SaveKeepTTL(ctx context.Context, sess *Session) error {
	if err := s.redis.SetJSONKeepTTL(ctx, sessionKey(sess.Phone), sess); err != nil {
		return fmt.Errorf("save session keep-ttl: %w", err)
	}
	return nil
}

// Delete removes the session. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, phone string) error {
	return s.redis.Delete(ctx, sessionKey(phone))
}

// Lock marks a phone as PIN-locked. The marker has no TTL: clearing it is
// an administrative action, not a cooldown.
func (s *Store) Lock(ctx context.Context, phone string) error {
	return s.redis.SetFlag(ctx, lockKey(phone), 0)
}

// IsLocked reports whether a phone is PIN-locked.
func (s *Store) IsLocked(ctx context.Context, phone string) (bool, error) {
	return s.redis.HasFlag(ctx, lockKey(phone))
}

// Unlock clears a PIN lock.
func (s *Store) Unlock(ctx context.Context, phone string) error {
	return s.redis.Delete(ctx, lockKey(phone))
}

// TTLFor maps a session state to its lifetime: authenticated sessions live
// long, every pending disambiguation is short.
func TTLFor(state State, pendingTTL, authTTL time.Duration) time.Duration {
	if state == StateAuthenticated {
		return authTTL
	}
	return pendingTTL
}

func sessionKey(phone string) string { return "session:" + phone }

func lockKey(phone string) string { return "pinlock:" + phone }
