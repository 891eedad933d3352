package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"go-chat-api/internal/apperr"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	u.ID = uuid.NewString()

	query := `INSERT INTO users (id, username, password) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Password); err != nil {
		return nil, apperr.Transient("failed to create user", err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password FROM users WHERE username = $1`

	if err := r.db.GetContext(ctx, u, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Transient("failed to fetch user", err)
	}
	return u, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]User, error) {
	// Capped to keep it fast.
	q := `SELECT id, username FROM users WHERE username ILIKE $1 LIMIT 10`

	var users []User
	if err := r.db.SelectContext(ctx, &users, q, "%"+query+"%"); err != nil {
		return nil, apperr.Transient("failed to search users", err)
	}
	return users, nil
}
