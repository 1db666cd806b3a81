package routes

import (
	"context"
	"fmt"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/gofiber/fiber/v2"
)

type roleHandlers struct {
	svc   *rbac.Service
	guard *rbac.Guard
}

type roleRequest struct {
	Role string `json:"role"`
}

type roleResponse struct {
	UserID string    `json:"user_id"`
	Role   rbac.Role `json:"role"`
}

// get returns a user's role. Users may read their own; anyone else needs
// manage:roles.
func (h *roleHandlers) get(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	userID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	if userID != actorID {
		if _, err := h.guard.RequirePermission(c.UserContext(), actorID, rbac.PermManageRoles); err != nil {
			return err
		}
	}

	role, ok, err := h.svc.GetUserRole(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role of %s: %w", userID, rbac.ErrNotFound)
	}
	return c.JSON(roleResponse{UserID: userID, Role: role})
}

func (h *roleHandlers) assign(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	userID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body roleRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	role, err := parseRole(body.Role)
	if err != nil {
		return err
	}

	ok, err := h.svc.CanAssign(c.UserContext(), actorID, userID, role)
	if err != nil {
		return err
	}
	if !ok {
		return rbac.NewPermissionError("Cannot assign a role at or above your own")
	}
	in := rbac.AssignRoleInput{UserID: userID, Role: role, PerformedBy: actorID}
	if err := h.svc.AssignRole(c.UserContext(), in); err != nil {
		return err
	}
	return c.JSON(roleResponse{UserID: userID, Role: role})
}

func (h *roleHandlers) remove(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	userID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}

	ok, err := h.svc.CanRemove(c.UserContext(), actorID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return rbac.NewPermissionError("Cannot remove a role at or above your own")
	}
	if err := h.svc.RemoveRole(c.UserContext(), userID, actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *roleHandlers) audit(c *fiber.Ctx) error {
	userID, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.svc.GetUserRoleAuditLog(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (h *roleHandlers) permissions(c *fiber.Ctx) error {
	role, err := parseRole(c.Params("role"))
	if err != nil {
		return err
	}
	perms, err := h.svc.GetRolePermissions(c.UserContext(), role)
	if err != nil {
		return err
	}
	return c.JSON(perms)
}

func (h *roleHandlers) grant(c *fiber.Ctx) error {
	return h.changeGrant(c, h.svc.GrantPermission)
}

func (h *roleHandlers) revoke(c *fiber.Ctx) error {
	return h.changeGrant(c, h.svc.RevokePermission)
}

func (h *roleHandlers) changeGrant(c *fiber.Ctx, apply func(ctx context.Context, role rbac.Role, permission, performedBy string) error) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	role, err := parseRole(c.Params("role"))
	if err != nil {
		return err
	}
	if err := apply(c.UserContext(), role, c.Params("permission"), actorID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// claimDefault gives the caller the customer role when it has none.
func (h *roleHandlers) claimDefault(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	role, err := h.svc.EnsureDefaultRole(c.UserContext(), actorID)
	if err != nil {
		return err
	}
	return c.JSON(roleResponse{UserID: actorID, Role: role})
}

func (h *roleHandlers) assignable(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	roles, err := h.svc.AssignableRoles(c.UserContext(), actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"roles": roles})
}

// effective reports every catalogue permission for the caller.
func (h *roleHandlers) effective(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	catalogue := rbac.Catalogue()
	names := make([]string, 0, len(catalogue))
	for _, p := range catalogue {
		names = append(names, p.Name)
	}

	results := h.guard.Evaluate(c.UserContext(), actorID, names)
	for _, r := range results {
		if r.Err != nil {
			return &rbac.PermissionError{Message: "Failed to validate permission", Err: r.Err}
		}
	}
	return c.JSON(results)
}

func parseRole(s string) (rbac.Role, error) {
	role, err := rbac.ParseRole(s)
	if err != nil {
		return "", &rbac.ValidationError{
			Message: "invalid role",
			Fields:  []rbac.FieldError{{Field: "role", Message: err.Error()}},
		}
	}
	return role, nil
}
