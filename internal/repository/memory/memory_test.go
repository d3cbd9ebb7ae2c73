package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, email, first, last string, balance int64) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: email, FirstName: first, LastName: last, PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))
	require.NoError(t, s.Accounts().Create(ctx, &model.Account{UserID: u.ID, Balance: decimal.NewFromInt(balance)}))
	return u
}

func TestStore_IDsAreObjectIDShaped(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "a@x.com", "Anna", "Leeson", 1)
	assert.Regexp(t, `^[0-9a-f]{24}$`, u.ID)

	acc, err := s.Accounts().GetByUserID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, acc.ID, 24)
	assert.NotEqual(t, u.ID, acc.ID)
}

func TestStore_DuplicateEmail(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "a@x.com", "Anna", "Leeson", 1)

	err := s.Users().Create(context.Background(), &model.User{Email: "a@x.com"})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestStore_InTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@x.com", "Anna", "Leeson", 100)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.Accounts().AddToBalance(ctx, a.ID, decimal.NewFromInt(-40)))
		require.NoError(t, tx.Users().Create(ctx, &model.User{Email: "b@x.com"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	acc, err := s.Accounts().GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))

	_, err = s.Users().GetByEmail(ctx, "b@x.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_InTx_CommitsOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@x.com", "Anna", "Leeson", 100)

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.Accounts().AddToBalance(ctx, a.ID, decimal.NewFromInt(-40))
	})
	require.NoError(t, err)

	acc, err := s.Accounts().GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(60)))
}

func TestStore_AddToBalance_RejectsNegative(t *testing.T) {
	s := NewStore()
	a := seedUser(t, s, "a@x.com", "Anna", "Leeson", 10)

	err := s.Accounts().AddToBalance(context.Background(), a.ID, decimal.NewFromInt(-11))
	require.Error(t, err)
}

func TestStore_ConcurrentTransactionsDoNotOverdraw(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := seedUser(t, s, "a@x.com", "Anna", "Leeson", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
				locked, err := tx.Accounts().LockByUserIDs(ctx, a.ID)
				if err != nil {
					return err
				}
				acc, ok := locked[a.ID]
				if !ok {
					return repository.ErrNotFound
				}
				if acc.Balance.LessThan(decimal.NewFromInt(10)) {
					return errors.New("insufficient")
				}
				return tx.Accounts().AddToBalance(ctx, a.ID, decimal.NewFromInt(-10))
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	acc, err := s.Accounts().GetByUserID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())
}

func TestStore_LockByUserIDs_SkipsMissing(t *testing.T) {
	s := NewStore()
	a := seedUser(t, s, "a@x.com", "Anna", "Leeson", 7)

	locked, err := s.Accounts().LockByUserIDs(context.Background(), a.ID, "ffffffffffffffffffffffff")
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.True(t, locked[a.ID].Balance.Equal(decimal.NewFromInt(7)))
}

func TestStore_Search(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	me := seedUser(t, s, "me@x.com", "Annie", "Self", 1)
	seedUser(t, s, "b@x.com", "Joanna", "Smith", 1)
	seedUser(t, s, "c@x.com", "Peter", "Hannigan", 1)
	seedUser(t, s, "d@x.com", "Peter", "Parker", 1)

	got, err := s.Users().Search(ctx, me.ID, "ANN", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Joanna", got[0].FirstName)
	assert.Equal(t, "Hannigan", got[1].LastName)
	for _, u := range got {
		assert.NotEqual(t, me.ID, u.ID)
	}

	limited, err := s.Users().Search(ctx, me.ID, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_UpdateKeepsUnsetFields(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "a@x.com", "Anna", "Leeson", 1)
	last := "Leeway"

	require.NoError(t, s.Users().Update(ctx, u.ID, model.UserUpdate{LastName: &last}))

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, "Leeway", got.LastName)
	assert.Equal(t, "h", got.PasswordHash)

	require.ErrorIs(t, s.Users().Update(ctx, "missing", model.UserUpdate{}), repository.ErrNotFound)
}
