package repository

import (
	"context"
	"errors"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, upd model.UserUpdate) error
	Search(ctx context.Context, excludeID, filter string, limit int) ([]model.UserSummary, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByUserID(ctx context.Context, userID string) (*model.Account, error)
	// LockByUserIDs returns the existing accounts of userIDs keyed by user id
	// and locks their rows until the surrounding transaction ends. Rows are
	// locked in user id order so concurrent callers cannot deadlock.
	LockByUserIDs(ctx context.Context, userIDs ...string) (map[string]*model.Account, error)
	AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error
}

// Store gives access to the repositories and scopes them to a transaction.
type Store interface {
	Users() UserRepository
	Accounts() AccountRepository
	// InTx calls fn with a Store whose repositories share one transaction.
	// All writes made through it commit together when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type postgresStore struct {
	database *Database
	q        DBTX
	inTx     bool
}

func NewPostgresStore(database *Database) Store {
	return &postgresStore{database: database, q: database.db}
}

func (s *postgresStore) Users() UserRepository {
	return NewUserRepository(s.q)
}

func (s *postgresStore) Accounts() AccountRepository {
	return NewAccountRepository(s.q)
}

func (s *postgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.database.WithTx(ctx, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &postgresStore{database: s.database, q: tx, inTx: true})
	})
}
