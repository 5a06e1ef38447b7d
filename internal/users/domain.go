// Package users manages accounts and their ABAC-scoped CRUD surface.
package users

import (
	"errors"
	"strings"
	"time"

	"github.com/pressroom-hq/pressroom/internal/abac"
)

var (
	// ErrEmailTaken indicates a signup with an already registered email.
	ErrEmailTaken = errors.New("users: email already taken")
	// ErrDefaultRoleMissing indicates the USER role row is absent.
	ErrDefaultRoleMissing = errors.New("users: default role missing")
	// ErrFieldForbidden indicates an update touching a field outside the
	// caller's whitelist.
	ErrFieldForbidden = errors.New("users: field not allowed")
)

// User is an account row with its role names.
type User struct {
	ID           int64
	UUID         string
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	City         string
	Country      string
	IsActive     bool
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AttributeMap returns the instance attributes rule conditions and
// response projection operate on. The password hash is never exposed
// here.
func (u User) AttributeMap() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"uuid":      u.UUID,
		"email":     u.Email,
		"username":  u.Username,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"fullName":  u.FullName(),
		"phone":     u.Phone,
		"city":      u.City,
		"country":   u.Country,
		"isActive":  u.IsActive,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

// Context returns the acting-user projection condition templates bind
// against.
func (u User) Context() abac.UserContext {
	return abac.UserContext{
		ID: u.ID,
		Attrs: map[string]any{
			"id":        u.ID,
			"uuid":      u.UUID,
			"email":     u.Email,
			"username":  u.Username,
			"firstName": u.FirstName,
			"lastName":  u.LastName,
			"phone":     u.Phone,
			"city":      u.City,
			"country":   u.Country,
		},
	}
}

// ColumnFor translates user instance attributes into SQL columns for
// predicate rendering.
func ColumnFor(attr string) (string, bool) {
	switch attr {
	case "id":
		return "id", true
	case "uuid":
		return "uuid", true
	case "email":
		return "email", true
	case "username":
		return "username", true
	case "city":
		return "city", true
	case "country":
		return "country", true
	case "isActive":
		return "is_active", true
	default:
		return "", false
	}
}
