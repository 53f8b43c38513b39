package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type PGUserRepository struct {
	db DB
}

func NewUserRepository(db DB) UserRepository {
	return &PGUserRepository{db: db}
}

func (r *PGUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, email, password_hash, name, phone, role, created_at) VALUES ($1, lower($2), $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Phone, string(user.Role), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ConflictError{Msg: "email already exists"}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PGUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `SELECT id, email, password_hash, name, phone, role, created_at FROM users WHERE email = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

var _ UserRepository = (*PGUserRepository)(nil)
