package entity

import "fmt"

// Role represents an authorization role.
// The set is closed so the authorization table can be checked exhaustively.
type Role string

const (
	// RoleNone is the role of an unauthenticated caller. It is never stored on a user.
	RoleNone   Role = ""
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

// Roles lists every role a stored user may hold.
var Roles = []Role{RoleReader, RoleAdmin}

func (r Role) Valid() bool {
	return r == RoleReader || r == RoleAdmin
}

// ParseRole maps the textual form back to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
