package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type accountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (user_id, balance)
              VALUES ($1, $2)
              RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, account.UserID, account.Balance).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*model.Account, error) {
	query := `SELECT id, user_id, balance, created_at FROM accounts WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

func (r *accountRepository) LockByUserIDs(ctx context.Context, userIDs ...string) (map[string]*model.Account, error) {
	query := `SELECT id, user_id, balance, created_at
              FROM accounts
              WHERE user_id = ANY($1)
              ORDER BY user_id
              FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]*model.Account, len(userIDs))
	for rows.Next() {
		account := &model.Account{}
		if err := rows.Scan(&account.ID, &account.UserID, &account.Balance, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		locked[account.UserID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	return locked, nil
}

func (r *accountRepository) getOne(ctx context.Context, query, userID string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.ID,
		&account.UserID,
		&account.Balance,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *accountRepository) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $1 WHERE user_id = $2`

	res, err := r.db.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
