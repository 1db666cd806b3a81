package routes

import (
	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/gofiber/fiber/v2"
)

type teamHandlers struct {
	svc *rbac.Service
}

type memberRequest struct {
	UserID string              `json:"user_id"`
	Role   rbac.TeamMemberRole `json:"role"`
}

func (h *teamHandlers) setLead(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	teamID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body memberRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	if err := h.svc.SetTeamLead(c.UserContext(), teamID, body.UserID, actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// addMember defaults the membership role to agent.
func (h *teamHandlers) addMember(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	teamID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body memberRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	if body.Role == "" {
		body.Role = rbac.MemberAgent
	}
	if err := h.svc.AddTeamMember(c.UserContext(), teamID, body.UserID, body.Role, actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
