package model

import "time"

type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public projection returned by user search.
type UserSummary struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UserUpdate carries the profile fields to overwrite. Nil fields are left untouched.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}
