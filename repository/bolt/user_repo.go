package bolt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/repository"
)

// account is the stored form of a user; domain.User hides the password hash from JSON.
type account struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"password_hash"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type userRepository struct {
	db  *bbolt.DB
	now Clock
}

func NewUserRepository(db *bbolt.DB, now Clock) repository.UserRepository {
	if now == nil {
		now = time.Now
	}
	return &userRepository{db: db, now: now}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = loadAccount(tx, id)
		return err
	})
	return user, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(boltdb.BucketAccountsEmail).Get([]byte(normalizeEmail(email)))
		if id == nil {
			return domain.ErrUserNotFound
		}
		var err error
		user, err = loadAccount(tx, string(id))
		return err
	})
	return user, err
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	user.Email = normalizeEmail(user.Email)
	now := r.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	payload, err := json.Marshal(account{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Status:       user.Status,
		Metadata:     user.Metadata,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		byEmail := tx.Bucket(boltdb.BucketAccountsEmail)
		if byEmail.Get([]byte(user.Email)) != nil {
			return domain.ErrEmailTaken
		}
		if err := byEmail.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return tx.Bucket(boltdb.BucketAccounts).Put([]byte(user.ID), payload)
	})
}

func loadAccount(tx *bbolt.Tx, id string) (*domain.User, error) {
	raw := tx.Bucket(boltdb.BucketAccounts).Get([]byte(id))
	if raw == nil {
		return nil, domain.ErrUserNotFound
	}
	var acc account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           acc.ID,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		Role:         acc.Role,
		Status:       acc.Status,
		Metadata:     acc.Metadata,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
