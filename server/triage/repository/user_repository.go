package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triage_server/server/common/infra/db"
	"triage_server/server/triage/domain"
)

var ErrEmailTaken = errors.New("email already registered")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var (
		user domain.User
		hash *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, full_name, phone_number, role, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Email, &user.FullName, &user.PhoneNumber, &user.Role, &hash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Entity: "user", ID: email}
	}
	if hash != nil {
		user.PasswordHash = *hash
	}
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (string, error) {
	var id string
	var hash *string
	if user.PasswordHash != "" {
		hash = &user.PasswordHash
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users(email, full_name, phone_number, role, password_hash)
		VALUES($1, $2, $3, $4, $5)
		RETURNING id
	`, user.Email, user.FullName, user.PhoneNumber, user.Role, hash).Scan(&id)
	if _, dup := db.UniqueViolation(err); dup {
		return "", ErrEmailTaken
	}
	return id, err
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE lower(email) = lower($2)`, hash, email)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "user", ID: email}
	}
	return nil
}
