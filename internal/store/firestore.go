package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Google Cloud Firestore. Sessions
// live in one collection keyed by identity; interaction records live in
// a second collection with auto-generated document ids.
type FirestoreStore struct {
	client        *firestore.Client
	sessions      string
	interactions  string
	defaultLesson string
	mu            sync.RWMutex
	closed        bool
}

// FirestoreConfig holds Firestore connection configuration.
type FirestoreConfig struct {
	// ProjectID is the GCP project (required).
	ProjectID string
	// CredentialsFile is a service-account key path; empty uses
	// Application Default Credentials.
	CredentialsFile string
	// CollectionPrefix prefixes the two collections (default "tutor_").
	CollectionPrefix string
	// DefaultLesson is the lesson id assigned to fresh sessions.
	DefaultLesson string
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project ID is required")
	}

	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "tutor_"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &FirestoreStore{
		client:        client,
		sessions:      prefix + "sessions",
		interactions:  prefix + "interactions",
		defaultLesson: cfg.DefaultLesson,
	}, nil
}

func (s *FirestoreStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// GetOrCreate returns the session for an identity, creating it with
// defaults on first contact.
func (s *FirestoreStore) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	doc := s.client.Collection(s.sessions).Doc(identity)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return nil, fmt.Errorf("get session: %w", err)
		}
		now := time.Now().UTC()
		sess := &Session{
			Identity:  identity,
			Mode:      ModeBilingual,
			LessonID:  s.defaultLesson,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := doc.Set(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}

	var sess Session
	if err := snap.DataTo(&sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Update applies a partial update to an existing session.
func (s *FirestoreStore) Update(ctx context.Context, identity string, delta Delta) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	doc := s.client.Collection(s.sessions).Doc(identity)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := snap.DataTo(&sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	delta.apply(&sess, time.Now().UTC())
	if _, err := doc.Set(ctx, &sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &sess, nil
}

// AppendInteraction adds one graded-answer record.
func (s *FirestoreStore) AppendInteraction(ctx context.Context, rec *Interaction) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.client.Collection(s.interactions).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// AverageScore returns the mean over all interaction records for an
// identity and the record count.
func (s *FirestoreStore) AverageScore(ctx context.Context, identity string) (float64, int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, 0, err
	}

	iter := s.client.Collection(s.interactions).
		Where("SessionID", "==", identity).
		Documents(ctx)
	defer iter.Stop()

	var sum float64
	var count int
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("iterate interactions: %w", err)
		}
		var rec Interaction
		if err := snap.DataTo(&rec); err != nil {
			return 0, 0, fmt.Errorf("decode interaction: %w", err)
		}
		sum += rec.Score
		count++
	}

	if count == 0 {
		return 0, 0, nil
	}
	return sum / float64(count), count, nil
}

// AllSessions returns every known session.
func (s *FirestoreStore) AllSessions(ctx context.Context) ([]*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	iter := s.client.Collection(s.sessions).Documents(ctx)
	defer iter.Stop()

	var sessions []*Session
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate sessions: %w", err)
		}
		var sess Session
		if err := snap.DataTo(&sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}

// Ping verifies the backend is reachable with a cheap read.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	iter := s.client.Collection(s.sessions).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close releases resources held by the store.
func (s *FirestoreStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
