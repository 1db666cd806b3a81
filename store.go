package rbac

import (
	"context"
)

// Store is the persistence the role service depends on.
type Store interface {
	// UserRole returns the live role of userID; ok is false when none exists.
	UserRole(ctx context.Context, userID string) (role Role, ok bool, err error)

	// HasPermission answers "does the user's current role include permission"
	// in a single round trip.
	HasPermission(ctx context.Context, userID, permission string) (bool, error)

	// RolePermissions returns every permission granted to role, ordered by name.
	RolePermissions(ctx context.Context, role Role) ([]Permission, error)

	// RoleAuditLog returns the role history of userID, newest first.
	RoleAuditLog(ctx context.Context, userID string) ([]AuditEntry, error)

	// InTx runs fn in one transaction; an error from fn rolls everything back.
	InTx(ctx context.Context, fn func(tx RoleTx) error) error

	// Seed upserts the permission catalogue and role grants.
	Seed(ctx context.Context, catalogue []Permission, grants map[Role][]string) error

	// GrantPermission adds permission to role; granting twice is a no-op.
	GrantPermission(ctx context.Context, role Role, permission string) error
	// RevokePermission removes permission from role and reports whether a
	// grant existed.
	RevokePermission(ctx context.Context, role Role, permission string) (bool, error)
}

// RoleTx is the transactional view used for role and team mutations.
type RoleTx interface {
	// LockUserRole reads the current role while holding row locks on the
	// user's profile and assignment until the transaction ends.
	LockUserRole(ctx context.Context, userID string) (role Role, ok bool, err error)
	UpsertUserRole(ctx context.Context, userID string, role Role) error
	DeleteUserRole(ctx context.Context, userID string) error
	AppendAudit(ctx context.Context, entry *RoleAuditLog) error

	Memberships(ctx context.Context, userID string) (Memberships, error)
	LockTeam(ctx context.Context, teamID string) (*Team, error)
	SetTeamLead(ctx context.Context, teamID, userID string) error
	UpsertTeamMember(ctx context.Context, member *TeamMember) error
}

// Memberships summarizes a user's team involvement.
type Memberships struct {
	Teams    int64
	LedTeams []string
}
