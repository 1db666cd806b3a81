package rbac

import (
	"context"
	"slices"
)

// AssignableRoles returns the roles actorID may hand out: every role strictly
// below the actor's own. Actors without a role get an empty list.
func (s *Service) AssignableRoles(ctx context.Context, actorID string) ([]Role, error) {
	role, ok, err := s.GetUserRole(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Role{}, nil
	}
	return ManageableRoles(role), nil
}

// CanAssign reports whether actorID may move userID to target. Both the
// user's current role and target must be below the actor's role.
func (s *Service) CanAssign(ctx context.Context, actorID, userID string, target Role) (bool, error) {
	manageable, err := s.AssignableRoles(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !slices.Contains(manageable, target) {
		return false, nil
	}
	return s.outranks(ctx, manageable, userID)
}

// CanRemove reports whether actorID may strip userID of its role.
func (s *Service) CanRemove(ctx context.Context, actorID, userID string) (bool, error) {
	manageable, err := s.AssignableRoles(ctx, actorID)
	if err != nil {
		return false, err
	}
	if len(manageable) == 0 {
		return false, nil
	}
	return s.outranks(ctx, manageable, userID)
}

func (s *Service) outranks(ctx context.Context, manageable []Role, userID string) (bool, error) {
	current, ok, err := s.GetUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return !ok || slices.Contains(manageable, current), nil
}
