package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedSeed(v int64) func() decimal.Decimal {
	return func() decimal.Decimal { return decimal.NewFromInt(v) }
}

func newUserService(t *testing.T, store repository.Store) *UserService {
	t.Helper()
	return NewUserService(store, newTestAuth(time.Hour), UserServiceConfig{SeedBalance: fixedSeed(500)}, zap.NewNop())
}

func signup(t *testing.T, s *UserService, first, last, email, password string) string {
	t.Helper()
	tok, err := s.Signup(context.Background(), SignupInput{FirstName: first, LastName: last, Email: email, Password: password})
	require.NoError(t, err)
	return tok
}

func TestSignup_ThenSignin(t *testing.T) {
	store := memory.NewStore()
	s := newUserService(t, store)
	ctx := context.Background()

	tok := signup(t, s, "Ann", "Lee", "ann@x.com", "secret1")
	userID, err := s.auth.ValidateToken(tok)
	require.NoError(t, err)

	res, err := s.Signin(ctx, "ann@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.Name)

	signedInID, err := s.auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, signedInID)
}

func TestSignup_CreatesSeededAccount(t *testing.T) {
	store := memory.NewStore()
	s := newUserService(t, store)

	tok := signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")
	userID, err := s.auth.ValidateToken(tok)
	require.NoError(t, err)

	acc, err := store.Accounts().GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(500)))
}

func TestSignup_StoresHashNotPassword(t *testing.T) {
	store := memory.NewStore()
	s := newUserService(t, store)
	signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")

	u, err := store.Users().GetByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestSignup_Duplicate(t *testing.T) {
	s := newUserService(t, memory.NewStore())
	signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")

	_, err := s.Signup(context.Background(), SignupInput{FirstName: "Other", LastName: "Person", Email: "ann@x.com", Password: "secret2"})
	require.ErrorIs(t, err, ErrDuplicateUser)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	s := newUserService(t, memory.NewStore())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Signup(context.Background(), SignupInput{FirstName: "Anna", LastName: "Leeson", Email: "ann@x.com", Password: "secret1"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrDuplicateUser)
	}
	assert.Equal(t, 1, ok)
}

func TestSignup_AccountFailureRollsBackUser(t *testing.T) {
	store := &failingStore{Store: memory.NewStore(), failAccountCreate: errors.New("disk full")}
	s := newUserService(t, store)

	_, err := s.Signup(context.Background(), SignupInput{FirstName: "Anna", LastName: "Leeson", Email: "ann@x.com", Password: "secret1"})
	require.Error(t, err)

	_, err = store.Users().GetByEmail(context.Background(), "ann@x.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignin_UnknownEmail(t *testing.T) {
	s := newUserService(t, memory.NewStore())

	_, err := s.Signin(context.Background(), "ghost@x.com", "whatever")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignin_WrongPassword(t *testing.T) {
	s := newUserService(t, memory.NewStore())
	signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")

	_, err := s.Signin(context.Background(), "ann@x.com", "secret2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPassword_ExistingEmail(t *testing.T) {
	s := newUserService(t, memory.NewStore())
	ctx := context.Background()
	signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")

	require.NoError(t, s.ResetPassword(ctx, "ann@x.com", "newsecret"))

	_, err := s.Signin(ctx, "ann@x.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Signin(ctx, "ann@x.com", "newsecret")
	require.NoError(t, err)
}

func TestResetPassword_UnknownEmailLooksLikeSuccess(t *testing.T) {
	store := memory.NewStore()
	s := newUserService(t, store)
	ctx := context.Background()
	signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")
	before, err := store.Users().GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)

	require.NoError(t, s.ResetPassword(ctx, "ghost@x.com", "newsecret"))

	after, err := store.Users().GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestUpdateProfile(t *testing.T) {
	store := memory.NewStore()
	s := newUserService(t, store)
	ctx := context.Background()
	tok := signup(t, s, "Anna", "Leeson", "ann@x.com", "secret1")
	userID, err := s.auth.ValidateToken(tok)
	require.NoError(t, err)

	first, pass := "Annabel", "changed1"
	require.NoError(t, s.UpdateProfile(ctx, userID, UpdateInput{FirstName: &first, Password: &pass}))

	res, err := s.Signin(ctx, "ann@x.com", "changed1")
	require.NoError(t, err)
	assert.Equal(t, "Annabel", res.Name)

	u, err := store.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Leeson", u.LastName)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	s := newUserService(t, memory.NewStore())
	first := "Annabel"

	err := s.UpdateProfile(context.Background(), "0123456789abcdef01234567", UpdateInput{FirstName: &first})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearch_ExcludesCaller(t *testing.T) {
	s := newUserService(t, memory.NewStore())
	ctx := context.Background()
	tok := signup(t, s, "Hannah", "Lee", "hannah@x.com", "secret1")
	callerID, err := s.auth.ValidateToken(tok)
	require.NoError(t, err)
	signup(t, s, "Joanna", "Smith", "jo@x.com", "secret1")
	signup(t, s, "Peter", "Mann", "pete@x.com", "secret1")
	signup(t, s, "Bob", "Stone", "bob@x.com", "secret1")

	got, err := s.Search(ctx, callerID, "aNn")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, u := range got {
		assert.NotEqual(t, callerID, u.ID)
	}

	all, err := s.Search(ctx, callerID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearch_Limit(t *testing.T) {
	store := memory.NewStore()
	s := NewUserService(store, newTestAuth(time.Hour), UserServiceConfig{SearchLimit: 1, SeedBalance: fixedSeed(1)}, zap.NewNop())
	signup(t, s, "Joanna", "Smith", "jo@x.com", "secret1")
	signup(t, s, "Peter", "Mann", "pete@x.com", "secret1")

	got, err := s.Search(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRandomSeedBalance_Range(t *testing.T) {
	gen := RandomSeedBalance(10000)
	lo, hi := decimal.NewFromInt(1), decimal.NewFromInt(10001)
	for i := 0; i < 200; i++ {
		v := gen()
		assert.True(t, v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi), "seed %s out of range", v)
		assert.LessOrEqual(t, -v.Exponent(), int32(2), "seed %s has more than 2 decimals", v)
	}
}

// failingStore wraps a Store and injects errors into selected operations.
type failingStore struct {
	repository.Store
	failAccountCreate error
	failCredit        error
}

func (f *failingStore) Accounts() repository.AccountRepository {
	return &failingAccounts{AccountRepository: f.Store.Accounts(), f: f}
}

func (f *failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return f.Store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, &failingStore{Store: tx, failAccountCreate: f.failAccountCreate, failCredit: f.failCredit})
	})
}

type failingAccounts struct {
	repository.AccountRepository
	f *failingStore
}

func (a *failingAccounts) Create(ctx context.Context, account *model.Account) error {
	if a.f.failAccountCreate != nil {
		return a.f.failAccountCreate
	}
	return a.AccountRepository.Create(ctx, account)
}

func (a *failingAccounts) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	if a.f.failCredit != nil && delta.IsPositive() {
		return a.f.failCredit
	}
	return a.AccountRepository.AddToBalance(ctx, userID, delta)
}
