package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

const uniqueViolation = "23505"

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, email, password_hash, role, status, metadata, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
		SELECT id, email, password_hash, role, status, metadata, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, normalizeEmail(email)))
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO users (id, email, password_hash, role, status, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), NOW())
	RETURNING created_at, updated_at
	`

	user.Email = normalizeEmail(user.Email)
	metadata, err := marshalMap(user.Metadata)
	if err != nil {
		return err
	}

	if err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		metadata,
		nullTime(user.CreatedAt),
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var metadata []byte

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&metadata,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &user.Metadata)
	}
	return &user, nil
}

func marshalMap(data map[string]string) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return json.Marshal(data)
}
