package controller

import (
	"errors"
	"net/http"

	"github.com/Evgen-Mutagen/payments-backend/internal/core"
	"github.com/Evgen-Mutagen/payments-backend/internal/metrics"
	"github.com/Evgen-Mutagen/payments-backend/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/payments-backend/internal/model"
	"github.com/Evgen-Mutagen/payments-backend/internal/service"
	"github.com/Evgen-Mutagen/payments-backend/internal/validator"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type UserController struct {
	users     core.UserOperations
	validator *validator.Validator
	logger    *zap.Logger
}

func NewUserController(users core.UserOperations, v *validator.Validator, logger *zap.Logger) *UserController {
	return &UserController{
		users:     users,
		validator: v,
		logger:    logger,
	}
}

type signupRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type updateRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,min=1"`
	LastName  *string `json:"lastName" validate:"omitnil,min=1"`
	Password  *string `json:"password" validate:"omitnil,min=6"`
}

type tokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type signinResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Token   string `json:"token"`
}

type resetPasswordResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type searchResponse struct {
	User []model.UserSummary `json:"user"`
}

// decode reads the JSON body into dst and validates it.
func (c *UserController) decode(r *http.Request, dst interface{}) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return err
	}
	return c.validator.Struct(dst)
}

func (c *UserController) Signup(w http.ResponseWriter, r *http.Request) {
	var request signupRequest
	if err := c.decode(r, &request); err != nil {
		c.logger.Debug("Invalid signup request", zap.Error(err))
		respondMessage(w, r, http.StatusLengthRequired, "Incorrect inputs / Email already taken")
		return
	}

	token, err := c.users.Signup(r.Context(), service.SignupInput{
		FirstName: request.FirstName,
		LastName:  request.LastName,
		Email:     request.Email,
		Password:  request.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateUser) {
			c.logger.Debug("Signup for existing email", zap.String("email", request.Email))
			respondMessage(w, r, http.StatusBadRequest, "User already exists.")
			return
		}
		c.logger.Error("Signup failed", zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Error creating user.")
		return
	}

	metrics.RecordSignup()
	respond(w, r, http.StatusOK, tokenResponse{Message: "User created successfully.", Token: token})
}

func (c *UserController) Signin(w http.ResponseWriter, r *http.Request) {
	var request signinRequest
	if err := c.decode(r, &request); err != nil {
		c.logger.Debug("Invalid signin request", zap.Error(err))
		respondMessage(w, r, http.StatusLengthRequired, "Incorrect inputs")
		return
	}

	res, err := c.users.Signin(r.Context(), request.Email, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondMessage(w, r, http.StatusBadRequest, "User not found.")
		case errors.Is(err, service.ErrInvalidCredentials):
			c.logger.Warn("Signin with wrong password", zap.String("email", request.Email))
			respondMessage(w, r, http.StatusBadRequest, "Incorrect Password")
		default:
			c.logger.Error("Signin failed", zap.Error(err))
			respondMessage(w, r, http.StatusInternalServerError, "Error signing in.")
		}
		return
	}

	respond(w, r, http.StatusOK, signinResponse{
		Message: "User successfully logged in",
		Name:    res.Name,
		Token:   res.Token,
	})
}

// ResetPassword answers identically whether or not the email is registered.
func (c *UserController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var request resetPasswordRequest
	if err := c.decode(r, &request); err != nil {
		c.logger.Debug("Invalid reset password request", zap.Error(err))
		respondMessage(w, r, http.StatusLengthRequired, "Incorrect inputs")
		return
	}

	if err := c.users.ResetPassword(r.Context(), request.Email, request.Password); err != nil {
		c.logger.Error("Password reset failed", zap.Error(err))
		respond(w, r, http.StatusInternalServerError, resetPasswordResponse{Message: "Error resetting password.", Success: false})
		return
	}

	respond(w, r, http.StatusOK, resetPasswordResponse{Message: "If the email exists, password has been reset.", Success: true})
}

func (c *UserController) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewareinternal.GetUserIDFromContext(r.Context())

	var request updateRequest
	if err := c.decode(r, &request); err != nil {
		c.logger.Debug("Invalid update request", zap.Error(err))
		respondMessage(w, r, http.StatusLengthRequired, "Error while updating information")
		return
	}

	err := c.users.UpdateProfile(r.Context(), userID, service.UpdateInput{
		FirstName: request.FirstName,
		LastName:  request.LastName,
		Password:  request.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondMessage(w, r, http.StatusLengthRequired, "Error while updating information")
			return
		}
		c.logger.Error("Profile update failed", zap.String("user_id", userID), zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Error while updating information")
		return
	}

	respondMessage(w, r, http.StatusOK, "Updated successfully")
}

func (c *UserController) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := middlewareinternal.GetUserIDFromContext(r.Context())

	users, err := c.users.Search(r.Context(), userID, r.URL.Query().Get("filter"))
	if err != nil {
		c.logger.Error("User search failed", zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Error searching users.")
		return
	}

	respond(w, r, http.StatusOK, searchResponse{User: users})
}
