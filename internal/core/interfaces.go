package core

import (
	"context"

	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/service"
	"github.com/shopspring/decimal"
)

type (
	TokenValidator interface {
		ValidateToken(tokenString string) (string, error)
	}

	UserOperations interface {
		Signup(ctx context.Context, in service.SignupInput) (string, error)
		Signin(ctx context.Context, email, password string) (*service.SigninResult, error)
		ResetPassword(ctx context.Context, email, newPassword string) error
		UpdateProfile(ctx context.Context, userID string, in service.UpdateInput) error
		Search(ctx context.Context, callerID, filter string) ([]model.UserSummary, error)
	}

	AccountOperations interface {
		GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
		Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) error
	}
)

var (
	_ TokenValidator    = (*service.AuthService)(nil)
	_ UserOperations    = (*service.UserService)(nil)
	_ AccountOperations = (*service.AccountService)(nil)
)
