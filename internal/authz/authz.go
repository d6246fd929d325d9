// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package authz decides whether a principal may see a protected view.
// Both the client-side navigation guard and the server's role middleware
// use Allows, so the two never disagree about who passes.
package authz

import (
	"inkpost/internal/models"
)

// Default navigation targets.
const (
	LoginPath = "/login"
	HomePath  = "/dashboard"
)

// Status is the resolution state of a session.
type Status int

const (
	// StatusPending means the credential check has not finished yet.
	StatusPending Status = iota
	// StatusResolved means a principal was established.
	StatusResolved
	// StatusUnauthenticated means there is no valid credential.
	StatusUnauthenticated
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Action is what the caller of Guard must do.
type Action int

const (
	// Wait means the session is still resolving; show a loading state.
	Wait Action = iota
	// RedirectLogin sends the visitor to the login view.
	RedirectLogin
	// RedirectHome silently sends the principal to their landing area.
	RedirectHome
	// Render shows the requested view.
	Render
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Guard. Location is set for redirects and
// ReturnTo carries the originally requested location to the login view.
type Decision struct {
	Action   Action
	Location string
	ReturnTo string
}

// Allows reports whether a principal holding role passes the required set.
// An empty set admits every known role; unknown roles never pass.
func Allows(role models.Role, required []models.Role) bool {
	if !role.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if matches(role, r) {
			return true
		}
	}
	return false
}

// matches compares two roles through the closed enumeration so that a
// typo in either operand can never grant access.
func matches(have, want models.Role) bool {
	switch want {
	case models.RoleAdmin:
		return have == models.RoleAdmin
	case models.RoleModerator:
		return have == models.RoleModerator
	case models.RoleUser:
		return have == models.RoleUser
	default:
		return false
	}
}

// Guard decides what to do when a visitor navigates to requested, a view
// that needs one of the required roles.
func Guard(status Status, principal *models.User, required []models.Role, requested string) Decision {
	switch status {
	case StatusPending:
		return Decision{Action: Wait}
	case StatusResolved:
		if principal == nil {
			return Decision{Action: RedirectLogin, Location: LoginPath, ReturnTo: requested}
		}
		if !Allows(principal.Role, required) {
			return Decision{Action: RedirectHome, Location: HomePath}
		}
		return Decision{Action: Render}
	default:
		return Decision{Action: RedirectLogin, Location: LoginPath, ReturnTo: requested}
	}
}
