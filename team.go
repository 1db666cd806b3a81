package rbac

import (
	"context"
	"fmt"
	"strings"
)

// AddTeamMember adds userID to teamID with the given membership role.
// Customers and users without a role cannot join a team.
func (s *Service) AddTeamMember(ctx context.Context, teamID, userID string, memberRole TeamMemberRole, performedBy string) error {
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(userID) == "" {
		return NewValidationError("team id and user id are required")
	}
	if !memberRole.Valid() {
		return &ValidationError{
			Message: "invalid membership role",
			Fields:  []FieldError{{Field: "role", Message: fmt.Sprintf("unknown membership role %q", memberRole)}},
		}
	}
	if memberRole == MemberTeamLead {
		return NewValidationError("Team lead membership is granted by setting the team lead")
	}

	err := s.store.InTx(ctx, func(tx RoleTx) error {
		if _, err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}
		role, ok, err := tx.LockUserRole(ctx, userID)
		if err != nil {
			return err
		}
		if !ok || role == RoleCustomer {
			return NewValidationError("Customers cannot be team members")
		}
		return tx.UpsertTeamMember(ctx, &TeamMember{TeamID: teamID, UserID: userID, Role: memberRole})
	})
	if err != nil {
		return fmt.Errorf("add team member: %w", constraintAsValidation(err))
	}

	s.log.Infow("team member added", "team_id", teamID, "user_id", userID, "role", memberRole, "performed_by", performedBy)
	return nil
}

// SetTeamLead makes userID the lead of teamID. The user joins the team as
// team_lead and is promoted to the team_lead role when below it; the
// previous lead stays on the team as an agent.
func (s *Service) SetTeamLead(ctx context.Context, teamID, userID, performedBy string) error {
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(userID) == "" {
		return NewValidationError("team id and user id are required")
	}
	if strings.TrimSpace(performedBy) == "" {
		return NewValidationError("performed by is required")
	}

	var promotion *RoleAuditLog
	err := s.store.InTx(ctx, func(tx RoleTx) error {
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return err
		}
		role, ok, err := tx.LockUserRole(ctx, userID)
		if err != nil {
			return err
		}
		if !ok || role == RoleCustomer {
			return NewValidationError("Customers cannot be team leads")
		}

		m, err := tx.Memberships(ctx, userID)
		if err != nil {
			return err
		}
		for _, led := range m.LedTeams {
			if led != teamID {
				return NewValidationError("User is already a lead of another team")
			}
		}

		if team.LeadID != nil && *team.LeadID != userID {
			prev := &TeamMember{TeamID: teamID, UserID: *team.LeadID, Role: MemberAgent}
			if err := tx.UpsertTeamMember(ctx, prev); err != nil {
				return err
			}
		}
		if err := tx.SetTeamLead(ctx, teamID, userID); err != nil {
			return err
		}
		if err := tx.UpsertTeamMember(ctx, &TeamMember{TeamID: teamID, UserID: userID, Role: MemberTeamLead}); err != nil {
			return err
		}

		if Level(role) < Level(RoleTeamLead) {
			promotion, err = writeRole(ctx, tx, userID, role, RoleTeamLead, performedBy)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set team lead: %w", constraintAsValidation(err))
	}

	if promotion != nil {
		s.metrics.observeRoleChange(promotion.Action, nil)
		s.afterRoleChange(ctx, promotion)
	}
	s.log.Infow("team lead set", "team_id", teamID, "user_id", userID, "performed_by", performedBy)
	return nil
}
