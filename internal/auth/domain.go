package auth

import "time"

// Account is the subset of a user record needed to sign in.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	UpdatedAt    time.Time
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}
