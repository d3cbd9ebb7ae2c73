package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// balanceScale is the number of decimal places the accounts table stores.
const balanceScale = 2

type AccountService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewAccountService(store repository.Store, logger *zap.Logger) *AccountService {
	return &AccountService{store: store, logger: logger}
}

func (s *AccountService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, err := s.store.Accounts().GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account: %w", err)
	}
	return account.Balance, nil
}

// Transfer moves amount from the sender's account to the recipient's. Both
// balance updates happen in one transaction; any failure leaves both accounts
// untouched. Both rows stay locked until the transaction ends.
func (s *AccountService) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(balanceScale)) {
		return ErrInvalidAmount
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		accounts := tx.Accounts()

		locked, err := accounts.LockByUserIDs(ctx, fromUserID, toUserID)
		if err != nil {
			return fmt.Errorf("failed to lock accounts: %w", err)
		}

		sender, ok := locked[fromUserID]
		if !ok || sender.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		if _, ok := locked[toUserID]; !ok {
			return ErrInvalidAccount
		}

		if err := accounts.AddToBalance(ctx, fromUserID, amount.Neg()); err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		if err := accounts.AddToBalance(ctx, toUserID, amount); err != nil {
			return fmt.Errorf("failed to credit recipient: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Transfer completed",
		zap.String("from", fromUserID),
		zap.String("to", toUserID),
		zap.String("amount", amount.String()))
	return nil
}
