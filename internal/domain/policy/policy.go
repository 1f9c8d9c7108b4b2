// Package policy holds the role table that gates every HTTP route.
package policy

import (
	"errors"
	"net/http"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

// ErrAuthorizationDenied is returned when an authenticated caller lacks the required role.
var ErrAuthorizationDenied = errors.New("authorization denied")

// Resource is the class of resource a route operates on.
type Resource string

const (
	// ResourceAccount covers registration and login.
	ResourceAccount Resource = "account"
	// ResourceBooks covers the catalog.
	ResourceBooks Resource = "books"
	// ResourceUsers covers profiles, reading lists and account management.
	ResourceUsers Resource = "users"
)

// Resources lists every resource class known to the table.
var Resources = []Resource{ResourceAccount, ResourceBooks, ResourceUsers}

// Requirement describes who may perform a request.
type Requirement int

const (
	Deny Requirement = iota
	Open
	ReaderOrAdmin
	AdminOnly
)

func (r Requirement) String() string {
	switch r {
	case Open:
		return "open"
	case ReaderOrAdmin:
		return "reader-or-admin"
	case AdminOnly:
		return "admin"
	default:
		return "deny"
	}
}

// Decision is the outcome of evaluating the table for one caller.
type Decision int

const (
	// Allowed lets the request through.
	Allowed Decision = iota
	// Unauthenticated means the resource needs a role and the caller has none.
	Unauthenticated
	// Forbidden means the caller is authenticated but lacks the role.
	Forbidden
)

// Require returns what the table demands for the method on the resource.
func Require(method string, resource Resource) Requirement {
	switch resource {
	case ResourceAccount:
		return Open
	case ResourceUsers:
		return ReaderOrAdmin
	case ResourceBooks:
		switch method {
		case http.MethodGet, http.MethodHead:
			return ReaderOrAdmin
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			return AdminOnly
		}
	}
	return Deny
}

// Decide evaluates the table. It is pure: equal inputs always give equal outputs.
func Decide(method string, resource Resource, role entity.Role) Decision {
	req := Require(method, resource)
	if req == Open {
		return Allowed
	}
	if role == entity.RoleNone {
		return Unauthenticated
	}
	switch req {
	case ReaderOrAdmin:
		if role == entity.RoleReader || role == entity.RoleAdmin {
			return Allowed
		}
	case AdminOnly:
		if role == entity.RoleAdmin {
			return Allowed
		}
	}
	return Forbidden
}
