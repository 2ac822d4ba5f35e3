package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Sessions are JSON values under
// a key prefix, interactions are per-identity lists, and an index set
// tracks known identities for the broadcast path.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	defaultLesson string
	mu            sync.RWMutex
	closed        bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all tutor keys (default: "tutor:").
	Prefix string
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
	// DefaultLesson is the lesson id assigned to fresh sessions.
	DefaultLesson string
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tutor:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:        client,
		prefix:        prefix,
		defaultLesson: cfg.DefaultLesson,
	}, nil
}

// NewRedisStoreFromClient creates a store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix, defaultLesson string) *RedisStore {
	if prefix == "" {
		prefix = "tutor:"
	}
	return &RedisStore{
		client:        client,
		prefix:        prefix,
		defaultLesson: defaultLesson,
	}
}

// Key helpers
func (s *RedisStore) sessionKey(identity string) string {
	return s.prefix + "session:" + identity
}

func (s *RedisStore) interactionsKey(identity string) string {
	return s.prefix + "interactions:" + identity
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// GetOrCreate returns the session for an identity, creating it with
// defaults on first contact.
func (s *RedisStore) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	sess, err := s.load(ctx, identity)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sess = &Session{
		Identity:  identity,
		Mode:      ModeBilingual,
		LessonID:  s.defaultLesson,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Update applies a partial update to an existing session.
func (s *RedisStore) Update(ctx context.Context, identity string, delta Delta) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	sess, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	delta.apply(sess, time.Now().UTC())
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendInteraction adds one graded-answer record.
func (s *RedisStore) AppendInteraction(ctx context.Context, rec *Interaction) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	if err := s.client.RPush(ctx, s.interactionsKey(rec.SessionID), data).Err(); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// AverageScore returns the mean over all interaction records for an
// identity and the record count.
func (s *RedisStore) AverageScore(ctx context.Context, identity string) (float64, int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, 0, err
	}

	data, err := s.client.LRange(ctx, s.interactionsKey(identity), 0, -1).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("load interactions: %w", err)
	}
	if len(data) == 0 {
		return 0, 0, nil
	}

	var sum float64
	for _, d := range data {
		var rec Interaction
		if err := json.Unmarshal([]byte(d), &rec); err != nil {
			return 0, 0, fmt.Errorf("unmarshal interaction: %w", err)
		}
		sum += rec.Score
	}
	return sum / float64(len(data)), len(data), nil
}

// AllSessions returns every known session via the identity index set.
func (s *RedisStore) AllSessions(ctx context.Context) ([]*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	identities, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(identities))
	for _, id := range identities {
		sess, err := s.load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				// Stale index entry, clean it up.
				s.client.SRem(ctx, s.indexKey(), id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *RedisStore) load(ctx context.Context, identity string) (*Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(sess.Identity), data, 0)
	pipe.SAdd(ctx, s.indexKey(), sess.Identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Close releases resources held by the store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
