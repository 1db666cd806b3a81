package rbac

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuditEntry is a role audit row as presented to readers.
type AuditEntry struct {
	ID            uint        `json:"id"`
	UserID        string      `json:"user_id"`
	Action        AuditAction `json:"action"`
	OldRole       *Role       `json:"old_role"`
	NewRole       *Role       `json:"new_role"`
	PerformedBy   string      `json:"performed_by"`
	PerformerName string      `json:"performer_name,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func newAuditEntry(l RoleAuditLog, performerName string) AuditEntry {
	return AuditEntry{
		ID:            l.ID,
		UserID:        l.UserID,
		Action:        l.Action,
		OldRole:       l.OldRole,
		NewRole:       l.NewRole,
		PerformedBy:   l.PerformedBy,
		PerformerName: performerName,
		CreatedAt:     l.CreatedAt,
	}
}

// roleTransition builds the audit row for moving userID between roles.
// An empty role stands for "no assignment".
func roleTransition(userID string, from, to Role, performedBy string) *RoleAuditLog {
	entry := &RoleAuditLog{
		UserID:      userID,
		PerformedBy: performedBy,
		OldRole:     rolePtr(from),
		NewRole:     rolePtr(to),
		CreatedAt:   time.Now().UTC(),
	}
	switch {
	case from == "":
		entry.Action = AuditCreate
	case to == "":
		entry.Action = AuditDelete
	default:
		entry.Action = AuditUpdate
	}
	return entry
}

func rolePtr(r Role) *Role {
	if r == "" {
		return nil
	}
	return &r
}

// GetUserRoleAuditLog returns the role history of userID, newest first.
func (s *Service) GetUserRoleAuditLog(ctx context.Context, userID string) ([]AuditEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("user id is required")
	}
	entries, err := s.store.RoleAuditLog(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get role audit log: %w", err)
	}
	return entries, nil
}
