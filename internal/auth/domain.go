package auth

import "time"

// Account is the credential projection of a user used during login.
type Account struct {
	ID           int64
	UUID         string
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
