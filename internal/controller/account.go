package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Evgen-Mutagen/payments-backend/internal/core"
	"github.com/Evgen-Mutagen/payments-backend/internal/metrics"
	"github.com/Evgen-Mutagen/payments-backend/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/payments-backend/internal/service"
	"github.com/Evgen-Mutagen/payments-backend/internal/validator"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountController struct {
	accounts  core.AccountOperations
	validator *validator.Validator
	logger    *zap.Logger
}

func NewAccountController(accounts core.AccountOperations, v *validator.Validator, logger *zap.Logger) *AccountController {
	return &AccountController{
		accounts:  accounts,
		validator: v,
		logger:    logger,
	}
}

var errAmountNotNumber = errors.New("amount must be a JSON number")

type transferRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	To     string          `json:"to" validate:"required,objectid"`
}

// UnmarshalJSON accepts amount only as a JSON number; decimal alone would
// also take a quoted string.
func (t *transferRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount json.RawMessage `json:"amount"`
		To     string          `json:"to"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	if len(raw.Amount) > 0 {
		if raw.Amount[0] == '"' {
			return errAmountNotNumber
		}
		if err := t.Amount.UnmarshalJSON(raw.Amount); err != nil {
			return err
		}
	}
	t.To = raw.To
	return nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

func (c *AccountController) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewareinternal.GetUserIDFromContext(r.Context())

	balance, err := c.accounts.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondMessage(w, r, http.StatusNotFound, "Account not found.")
			return
		}
		c.logger.Error("Balance lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Error fetching balance.")
		return
	}

	respond(w, r, http.StatusOK, balanceResponse{Balance: balance.InexactFloat64()})
}

func (c *AccountController) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewareinternal.GetUserIDFromContext(r.Context())

	var request transferRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		c.logger.Debug("Invalid transfer request", zap.Error(err))
		respondMessage(w, r, http.StatusBadRequest, "Invalid transfer data")
		return
	}
	if err := c.validator.Struct(request); err != nil {
		c.logger.Debug("Invalid transfer request", zap.Error(err))
		respondMessage(w, r, http.StatusBadRequest, "Invalid transfer data")
		return
	}

	err := c.accounts.Transfer(r.Context(), userID, request.To, request.Amount)
	switch {
	case err == nil:
		metrics.RecordTransfer(metrics.TransferOK)
		respondMessage(w, r, http.StatusOK, "Transaction Successful.")
	case errors.Is(err, service.ErrInsufficientBalance):
		metrics.RecordTransfer(metrics.TransferInsufficient)
		respondMessage(w, r, http.StatusBadRequest, "Insufficient Balance.")
	case errors.Is(err, service.ErrInvalidAccount):
		metrics.RecordTransfer(metrics.TransferInvalid)
		respondMessage(w, r, http.StatusBadRequest, "Invalid account")
	case errors.Is(err, service.ErrInvalidAmount):
		respondMessage(w, r, http.StatusBadRequest, "Invalid transfer data")
	default:
		metrics.RecordTransfer(metrics.TransferFailed)
		c.logger.Error("Transfer failed",
			zap.String("from", userID),
			zap.String("to", request.To),
			zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Error processing transaction.")
	}
}
