package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (email, first_name, last_name, password_hash)
              VALUES ($1, $2, $3, $4)
              RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, first_name, last_name, password_hash, created_at, updated_at
              FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, email, first_name, last_name, password_hash, created_at, updated_at
              FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Update(ctx context.Context, id string, upd model.UserUpdate) error {
	query := `UPDATE users
              SET first_name = COALESCE($1, first_name),
                  last_name = COALESCE($2, last_name),
                  password_hash = COALESCE($3, password_hash),
                  updated_at = NOW()
              WHERE id = $4`

	res, err := r.db.ExecContext(ctx, query,
		nullString(upd.FirstName),
		nullString(upd.LastName),
		nullString(upd.PasswordHash),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches filter as a literal, case-insensitive substring of either
// name. A non-positive limit returns every match.
func (r *userRepository) Search(ctx context.Context, excludeID, filter string, limit int) ([]model.UserSummary, error) {
	query := `SELECT id, first_name, last_name
              FROM users
              WHERE (first_name ILIKE $1 OR last_name ILIKE $1)
                AND id <> $2
              ORDER BY first_name, last_name, id
              LIMIT $3`

	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query, containsPattern(filter), excludeID, lim)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserSummary, 0)
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(filter string) string {
	return "%" + likeEscaper.Replace(filter) + "%"
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
