package domain

import (
	"strings"
)

// Role is the closed set of organization roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleContractor Role = "contractor"
)

// Roles lists every role; access rules are tested against each entry.
var Roles = []Role{RoleAdmin, RoleManager, RoleContractor}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleContractor:
		return true
	default:
		return false
	}
}

// CanManage reports whether members with this role may be referenced as a manager.
func (r Role) CanManage() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleContractor:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
