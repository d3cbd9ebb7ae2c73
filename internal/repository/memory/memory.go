// Package memory is an in-memory repository.Store. It is safe for concurrent
// use and is meant for tests and local runs without Postgres.
//
// Transactions serialize on a single store-wide lock and are rolled back by
// restoring a snapshot taken when the transaction began. Code running inside
// InTx must only use the Store it was handed.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	users    map[string]model.User
	emails   map[string]string
	accounts map[string]model.Account // keyed by user id
}

func (st *state) clone() *state {
	c := &state{
		users:    make(map[string]model.User, len(st.users)),
		emails:   make(map[string]string, len(st.emails)),
		accounts: make(map[string]model.Account, len(st.accounts)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.emails {
		c.emails[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	return c
}

// newID matches the column default in Postgres: the first 24 hex digits of a
// random UUID.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

type Store struct {
	mu   *sync.Mutex
	st   **state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	st := &state{
		users:    make(map[string]model.User),
		emails:   make(map[string]string),
		accounts: make(map[string]model.Account),
	}
	return &Store{mu: &sync.Mutex{}, st: &st}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

func (s *Store) Accounts() repository.AccountRepository {
	return &accountRepo{s: s}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.st).clone()
	defer func() {
		if p := recover(); p != nil {
			*s.st = snapshot
			panic(p)
		}
		if err != nil {
			*s.st = snapshot
		}
	}()

	return fn(ctx, &Store{mu: s.mu, st: s.st, inTx: true})
}

// with runs fn against the current state, taking the lock unless the caller
// is already inside a transaction.
func (s *Store) with(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(*s.st)
}

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	return r.s.with(func(st *state) error {
		if _, exists := st.emails[user.Email]; exists {
			return repository.ErrAlreadyExists
		}
		now := time.Now().UTC()
		user.ID = newID()
		user.CreatedAt = now
		user.UpdatedAt = now
		st.users[user.ID] = *user
		st.emails[user.Email] = user.ID
		return nil
	})
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.s.with(func(st *state) error {
		id, ok := st.emails[email]
		if !ok {
			return repository.ErrNotFound
		}
		u := st.users[id]
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	var out *model.User
	err := r.s.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) Update(_ context.Context, id string, upd model.UserUpdate) error {
	return r.s.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		if upd.FirstName != nil {
			u.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = *upd.LastName
		}
		if upd.PasswordHash != nil {
			u.PasswordHash = *upd.PasswordHash
		}
		u.UpdatedAt = time.Now().UTC()
		st.users[id] = u
		return nil
	})
}

func (r *userRepo) Search(_ context.Context, excludeID, filter string, limit int) ([]model.UserSummary, error) {
	out := make([]model.UserSummary, 0)
	needle := strings.ToLower(filter)
	err := r.s.with(func(st *state) error {
		for id, u := range st.users {
			if id == excludeID {
				continue
			}
			if strings.Contains(strings.ToLower(u.FirstName), needle) ||
				strings.Contains(strings.ToLower(u.LastName), needle) {
				out = append(out, model.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type accountRepo struct {
	s *Store
}

func (r *accountRepo) Create(_ context.Context, account *model.Account) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.users[account.UserID]; !ok {
			return fmt.Errorf("failed to create account: user %s: %w", account.UserID, repository.ErrNotFound)
		}
		if _, exists := st.accounts[account.UserID]; exists {
			return repository.ErrAlreadyExists
		}
		if account.Balance.IsNegative() {
			return fmt.Errorf("failed to create account: negative balance %s", account.Balance)
		}
		account.ID = newID()
		account.CreatedAt = time.Now().UTC()
		st.accounts[account.UserID] = *account
		return nil
	})
}

func (r *accountRepo) GetByUserID(_ context.Context, userID string) (*model.Account, error) {
	var out *model.Account
	err := r.s.with(func(st *state) error {
		a, ok := st.accounts[userID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// LockByUserIDs reads the accounts under the store lock. Isolation comes from
// InTx holding that lock for the whole transaction.
func (r *accountRepo) LockByUserIDs(_ context.Context, userIDs ...string) (map[string]*model.Account, error) {
	locked := make(map[string]*model.Account, len(userIDs))
	err := r.s.with(func(st *state) error {
		for _, id := range userIDs {
			if a, ok := st.accounts[id]; ok {
				locked[id] = &a
			}
		}
		return nil
	})
	return locked, err
}

func (r *accountRepo) AddToBalance(_ context.Context, userID string, delta decimal.Decimal) error {
	return r.s.with(func(st *state) error {
		a, ok := st.accounts[userID]
		if !ok {
			return repository.ErrNotFound
		}
		next := a.Balance.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("failed to update balance: balance would become %s", next)
		}
		a.Balance = next
		st.accounts[userID] = a
		return nil
	})
}
