package rbac

import (
	"fmt"
	"strings"
)

// Role is a position in the fixed privilege ordering.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAgent      Role = "agent"
	RoleTeamLead   Role = "team_lead"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleOrder lists roles from least to most privileged.
var roleOrder = []Role{RoleCustomer, RoleAgent, RoleTeamLead, RoleAdmin, RoleSuperAdmin}

// Roles returns the ordered role list, lowest first.
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// ParseRole normalizes s and returns the matching role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if Level(r) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return Level(r) >= 0
}

func (r Role) String() string {
	return string(r)
}

// Level returns the index of role in the hierarchy, or -1 when unknown.
func Level(role Role) int {
	for i, r := range roleOrder {
		if r == role {
			return i
		}
	}
	return -1
}

// HasRole reports whether userRole subsumes required.
func HasRole(userRole, required Role) bool {
	userLevel := Level(userRole)
	requiredLevel := Level(required)
	if userLevel < 0 || requiredLevel < 0 {
		return false
	}
	return userLevel >= requiredLevel
}

// HasAnyRole reports whether userRole subsumes at least one of required.
func HasAnyRole(userRole Role, required ...Role) bool {
	for _, r := range required {
		if HasRole(userRole, r) {
			return true
		}
	}
	return false
}

// ManageableRoles returns the roles strictly below role, lowest first.
func ManageableRoles(role Role) []Role {
	level := Level(role)
	if level <= 0 {
		return []Role{}
	}
	out := make([]Role, level)
	copy(out, roleOrder[:level])
	return out
}

// NextRole returns the role directly above role.
func NextRole(role Role) (Role, bool) {
	level := Level(role)
	if level < 0 || level == len(roleOrder)-1 {
		return "", false
	}
	return roleOrder[level+1], true
}

// PreviousRole returns the role directly below role.
func PreviousRole(role Role) (Role, bool) {
	level := Level(role)
	if level <= 0 {
		return "", false
	}
	return roleOrder[level-1], true
}
