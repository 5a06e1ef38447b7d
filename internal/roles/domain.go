package roles

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("roles: not found")

// ErrRoleTaken indicates a role name collision.
var ErrRoleTaken = errors.New("roles: name taken")

// Role is a named grant bundle for management purposes.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is one stored access rule. Fields and Conditions hold the raw
// JSON payloads exactly as the compiler will read them.
type Permission struct {
	ID         int64
	Action     string
	Subject    string
	Fields     *string
	Conditions *string
}
