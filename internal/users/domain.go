package users

import "time"

// User represents a staff account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdministrator reports whether this is the reserved built-in account.
func (u User) IsAdministrator() bool {
	return isReserved(u.Username)
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	IsActive bool   `json:"is_active"`
}

// UpdateInput carries editable account fields. An empty password keeps the current one.
type UpdateInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive bool   `json:"is_active"`
}
