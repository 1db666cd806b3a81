package rbac

import (
	"context"
	"fmt"
	"strings"
)

// GrantPermission adds permission to role. Every cached decision is dropped
// since any holder of role may be affected.
func (s *Service) GrantPermission(ctx context.Context, role Role, permission, performedBy string) error {
	if err := validateGrant(role, permission); err != nil {
		return err
	}
	if err := s.store.GrantPermission(ctx, role, permission); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	s.dropCache(ctx)
	s.log.Infow("permission granted", "role", role, "permission", permission, "performed_by", performedBy)
	return nil
}

// RevokePermission removes permission from role. Revoking a permission the
// role does not hold succeeds.
func (s *Service) RevokePermission(ctx context.Context, role Role, permission, performedBy string) error {
	if err := validateGrant(role, permission); err != nil {
		return err
	}
	removed, err := s.store.RevokePermission(ctx, role, permission)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	if !removed {
		return nil
	}
	s.dropCache(ctx)
	s.log.Infow("permission revoked", "role", role, "permission", permission, "performed_by", performedBy)
	return nil
}

func validateGrant(role Role, permission string) error {
	var fields []FieldError
	if !role.Valid() {
		fields = append(fields, FieldError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)})
	}
	if strings.TrimSpace(permission) == "" {
		fields = append(fields, FieldError{Field: "permission", Message: "is required"})
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "invalid permission grant", Fields: fields}
	}
	return nil
}

func (s *Service) dropCache(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.log.Warnw("failed to clear permission cache", "error", err)
	}
}
