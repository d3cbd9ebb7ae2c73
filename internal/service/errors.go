package service

import "errors"

var (
	ErrDuplicateUser       = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidToken        = errors.New("invalid token")
)
