// Package guard decides whether a visitor may see a gated route given the
// current session and role observations.
package guard

import (
	"net/url"

	"storefront/internal/models"
	"storefront/internal/session"
)

type Kind int

const (
	Private Kind = iota
	Admin
	User
)

func (k Kind) String() string {
	switch k {
	case Admin:
		return "admin"
	case User:
		return "user"
	}
	return "private"
}

type Status int

const (
	Pending Status = iota
	Allowed
	Denied
)

type Decision struct {
	Status   Status
	Redirect string
}

// RoleView is the role resolver's current answer for the visitor.
type RoleView struct {
	Role    models.Role
	Loading bool
}

const (
	LoginPath     = "/login"
	ForbiddenPath = "/forbidden"
)

// Evaluate never allows or redirects while anything it depends on is still
// loading.
func Evaluate(kind Kind, sess session.State, role RoleView, requestedPath string) Decision {
	if sess.Loading {
		return Decision{Status: Pending}
	}
	if kind != Private && role.Loading {
		return Decision{Status: Pending}
	}

	switch kind {
	case Private:
		if sess.User == nil {
			return Decision{Status: Denied, Redirect: LoginRedirect(requestedPath)}
		}
		return Decision{Status: Allowed}
	case Admin:
		if sess.User != nil && role.Role == models.RoleAdmin {
			return Decision{Status: Allowed}
		}
	case User:
		if sess.User != nil && role.Role == models.RoleUser {
			return Decision{Status: Allowed}
		}
	}
	return Decision{Status: Denied, Redirect: ForbiddenPath}
}

// LoginRedirect builds the login URL that returns the visitor to from.
func LoginRedirect(from string) string {
	if from == "" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": {from}}.Encode()
}

// SafeReturn accepts only same-site absolute paths for post-login redirects.
func SafeReturn(from string) string {
	if len(from) < 1 || from[0] != '/' || (len(from) > 1 && (from[1] == '/' || from[1] == '\\')) {
		return "/"
	}
	return from
}
