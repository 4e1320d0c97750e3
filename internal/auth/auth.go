// Package auth identifies the user performing an operation.
//
// The engine itself is transport-agnostic: whoever embeds it supplies a
// Provider that resolves the current caller. The CLI uses a
// StaticProvider configured from flags; a server front end would plug in
// its session layer instead.
package auth

import (
	"context"
	"errors"
)

// Roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// ErrUnauthenticated is returned when no user can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// User is an authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Provider resolves the user on whose behalf an operation runs.
type Provider interface {
	Current(ctx context.Context) (User, error)
}

// StaticProvider always returns a fixed user. Used by the CLI, where the
// caller is named by flags, and by tests.
type StaticProvider struct {
	User User
}

// Current returns the configured user, or ErrUnauthenticated when none
// is set.
func (p StaticProvider) Current(ctx context.Context) (User, error) {
	if p.User.ID == "" {
		return User{}, ErrUnauthenticated
	}
	return p.User, nil
}
