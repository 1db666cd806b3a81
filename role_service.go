package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AssignRoleInput describes a role assignment.
type AssignRoleInput struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	PerformedBy string `json:"performed_by"`
}

func (in AssignRoleInput) validate() error {
	var fields []FieldError
	if strings.TrimSpace(in.UserID) == "" {
		fields = append(fields, FieldError{Field: "user_id", Message: "is required"})
	}
	if !in.Role.Valid() {
		fields = append(fields, FieldError{Field: "role", Message: fmt.Sprintf("unknown role %q", in.Role)})
	}
	if strings.TrimSpace(in.PerformedBy) == "" {
		fields = append(fields, FieldError{Field: "performed_by", Message: "is required"})
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "invalid role assignment", Fields: fields}
	}
	return nil
}

// GetUserRole returns the current role of userID; ok is false when the user
// has no assignment or does not exist.
func (s *Service) GetUserRole(ctx context.Context, userID string) (Role, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return "", false, NewValidationError("user id is required")
	}
	role, ok, err := s.store.UserRole(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("get user role: %w", err)
	}
	return role, ok, nil
}

// AssignRole sets the role of a user and records the transition. The role
// write and its audit entry commit together or not at all.
func (s *Service) AssignRole(ctx context.Context, in AssignRoleInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	var entry *RoleAuditLog
	err := s.store.InTx(ctx, func(tx RoleTx) error {
		current, _, err := tx.LockUserRole(ctx, in.UserID)
		if err != nil {
			return err
		}
		if in.Role == RoleCustomer {
			if err := ensureNotOnTeam(ctx, tx, in.UserID); err != nil {
				return err
			}
		}
		entry, err = writeRole(ctx, tx, in.UserID, current, in.Role, in.PerformedBy)
		return err
	})
	s.metrics.observeRoleChange(actionFor(entry, AuditUpdate), err)
	if err != nil {
		return fmt.Errorf("assign role: %w", constraintAsValidation(err))
	}

	s.afterRoleChange(ctx, entry)
	return nil
}

// RemoveRole deletes the role of a user. Removing a missing role succeeds
// without writing an audit entry.
func (s *Service) RemoveRole(ctx context.Context, userID, performedBy string) error {
	var fields []FieldError
	if strings.TrimSpace(userID) == "" {
		fields = append(fields, FieldError{Field: "user_id", Message: "is required"})
	}
	if strings.TrimSpace(performedBy) == "" {
		fields = append(fields, FieldError{Field: "performed_by", Message: "is required"})
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "invalid role removal", Fields: fields}
	}

	var entry *RoleAuditLog
	err := s.store.InTx(ctx, func(tx RoleTx) error {
		current, ok, err := tx.LockUserRole(ctx, userID)
		if err != nil || !ok {
			return err
		}
		if err := tx.DeleteUserRole(ctx, userID); err != nil {
			return err
		}
		entry = roleTransition(userID, current, "", performedBy)
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		s.metrics.observeRoleChange(AuditDelete, err)
		return fmt.Errorf("remove role: %w", err)
	}
	if entry == nil {
		s.log.Debugw("role removal skipped, no role assigned", "user_id", userID, "performed_by", performedBy)
		return nil
	}

	s.metrics.observeRoleChange(AuditDelete, nil)
	s.afterRoleChange(ctx, entry)
	return nil
}

// EnsureDefaultRole gives a freshly created profile the customer role when it
// has none, and returns the role the user ends up with.
func (s *Service) EnsureDefaultRole(ctx context.Context, userID string) (Role, error) {
	if strings.TrimSpace(userID) == "" {
		return "", NewValidationError("user id is required")
	}

	var (
		role  Role
		entry *RoleAuditLog
	)
	err := s.store.InTx(ctx, func(tx RoleTx) error {
		current, ok, err := tx.LockUserRole(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			role = current
			return nil
		}
		role = RoleCustomer
		entry, err = writeRole(ctx, tx, userID, "", RoleCustomer, userID)
		return err
	})
	if err != nil {
		s.metrics.observeRoleChange(AuditCreate, err)
		return "", fmt.Errorf("ensure default role: %w", err)
	}
	if entry != nil {
		s.metrics.observeRoleChange(AuditCreate, nil)
		s.afterRoleChange(ctx, entry)
	}
	return role, nil
}

// CheckPermission reports whether the user's current role grants permission.
func (s *Service) CheckPermission(ctx context.Context, userID, permission string) (bool, error) {
	gen, cacheable := s.cache.Generation(ctx, userID)
	if cacheable {
		if allowed, found := s.cache.Decision(ctx, userID, gen, permission); found {
			return allowed, nil
		}
	}
	allowed, err := s.store.HasPermission(ctx, userID, permission)
	if err != nil {
		return false, fmt.Errorf("check permission %s: %w", permission, err)
	}
	if cacheable {
		s.cache.SetDecision(ctx, userID, gen, permission, allowed)
	}
	return allowed, nil
}

// GetRolePermissions returns the permissions granted to role.
func (s *Service) GetRolePermissions(ctx context.Context, role Role) ([]Permission, error) {
	if !role.Valid() {
		return nil, &ValidationError{
			Message: "invalid role",
			Fields:  []FieldError{{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}},
		}
	}
	gen, cacheable := s.cache.Generation(ctx, "")
	if cacheable {
		if perms, ok := s.cache.RolePermissions(ctx, gen, role); ok {
			return perms, nil
		}
	}
	perms, err := s.store.RolePermissions(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("get role permissions: %w", err)
	}
	if cacheable {
		s.cache.SetRolePermissions(ctx, gen, role, perms)
	}
	return perms, nil
}

// writeRole upserts the assignment and appends its audit entry inside tx.
func writeRole(ctx context.Context, tx RoleTx, userID string, current, role Role, performedBy string) (*RoleAuditLog, error) {
	if err := tx.UpsertUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	entry := roleTransition(userID, current, role, performedBy)
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func ensureNotOnTeam(ctx context.Context, tx RoleTx, userID string) error {
	m, err := tx.Memberships(ctx, userID)
	if err != nil {
		return err
	}
	if len(m.LedTeams) > 0 {
		return NewValidationError("Customers cannot be team leads")
	}
	if m.Teams > 0 {
		return NewValidationError("Customers cannot be team members")
	}
	return nil
}

func (s *Service) afterRoleChange(ctx context.Context, entry *RoleAuditLog) {
	if err := s.cache.InvalidateUser(ctx, entry.UserID); err != nil {
		s.log.Warnw("failed to invalidate permission cache", "user_id", entry.UserID, "error", err)
	}
	s.log.Infow("role changed",
		"user_id", entry.UserID,
		"action", entry.Action,
		"old_role", roleOrEmpty(entry.OldRole),
		"new_role", roleOrEmpty(entry.NewRole),
		"performed_by", entry.PerformedBy,
	)
}

func actionFor(entry *RoleAuditLog, fallback AuditAction) AuditAction {
	if entry == nil {
		return fallback
	}
	return entry.Action
}

func roleOrEmpty(r *Role) string {
	if r == nil {
		return ""
	}
	return string(*r)
}

// constraintAsValidation surfaces store-level uniqueness violations as
// ValidationError.
func constraintAsValidation(err error) error {
	if errors.Is(err, ErrConstraint) {
		return &ValidationError{Message: err.Error()}
	}
	return err
}
