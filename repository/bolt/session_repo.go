package bolt

import (
	"context"
	"encoding/json"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/repository"
)

type sessionRepository struct {
	db  *bbolt.DB
	ttl time.Duration
	now Clock
}

// NewSessionRepository keeps sessions in the embedded store. Expired sessions
// are removed lazily when read.
func NewSessionRepository(db *bbolt.DB, ttl time.Duration, now Clock) repository.SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &sessionRepository{db: db, ttl: ttl, now: now}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(boltdb.BucketSessions).Get([]byte(id))
		if raw == nil {
			return domain.ErrSessionNotFound
		}
		return json.Unmarshal(raw, &session)
	})
	if err != nil {
		return nil, err
	}
	if session.IsExpired(r.now()) {
		_ = r.Delete(ctx, id)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	if session.ExpiresAt.Before(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}
	return r.put(session)
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltdb.BucketSessions).Delete([]byte(id))
	})
}

func (r *sessionRepository) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Extend(r.now(), ttl)
	return r.put(session)
}

func (r *sessionRepository) put(session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltdb.BucketSessions).Put([]byte(session.ID), payload)
	})
}
