package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type SigninResult struct {
	Name  string
	Token string
}

// UpdateInput holds the profile fields to change; nil means keep.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Password  *string
}

type UserServiceConfig struct {
	// SearchLimit caps search results; 0 returns every match.
	SearchLimit int
	// SeedBalance yields the opening balance of a new account.
	SeedBalance func() decimal.Decimal
}

type UserService struct {
	store       repository.Store
	auth        *AuthService
	searchLimit int
	seedBalance func() decimal.Decimal
	logger      *zap.Logger
}

func NewUserService(store repository.Store, auth *AuthService, cfg UserServiceConfig, logger *zap.Logger) *UserService {
	seed := cfg.SeedBalance
	if seed == nil {
		seed = RandomSeedBalance(10000)
	}
	return &UserService{
		store:       store,
		auth:        auth,
		searchLimit: cfg.SearchLimit,
		seedBalance: seed,
		logger:      logger,
	}
}

// RandomSeedBalance returns a generator of opening balances uniformly drawn
// from [1, 1+max), rounded to cents.
func RandomSeedBalance(max float64) func() decimal.Decimal {
	return func() decimal.Decimal {
		return decimal.NewFromFloat(1 + rand.Float64()*max).Round(2)
	}
}

// Signup creates the user together with its account and returns a fresh token.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (string, error) {
	_, err := s.store.Users().GetByEmail(ctx, in.Email)
	if err == nil {
		return "", ErrDuplicateUser
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to check user: %w", err)
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return "", err
	}

	user := &model.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return ErrDuplicateUser
			}
			return err
		}

		account := &model.Account{
			UserID:  user.ID,
			Balance: s.seedBalance(),
		}
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("User created", zap.String("user_id", user.ID))

	return s.auth.IssueToken(user.ID)
}

func (s *UserService) Signin(ctx context.Context, email, password string) (*SigninResult, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &SigninResult{Name: user.FirstName, Token: token}, nil
}

// ResetPassword overwrites the password of the user owning email. Unknown
// emails are not reported so callers cannot probe which ones are registered.
func (s *UserService) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.Users().Update(ctx, user.ID, model.UserUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateInput) error {
	upd := model.UserUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if in.Password != nil {
		hash, err := s.auth.HashPassword(*in.Password)
		if err != nil {
			return err
		}
		upd.PasswordHash = &hash
	}

	err := s.store.Users().Update(ctx, userID, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Search returns users whose first or last name contains filter, ignoring
// case. The caller is never part of the result.
func (s *UserService) Search(ctx context.Context, callerID, filter string) ([]model.UserSummary, error) {
	users, err := s.store.Users().Search(ctx, callerID, filter, s.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}
