package access

import (
	"context"
	"errors"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/gofiber/fiber/v2"
)

const (
	msgNoTicketAccess = "User does not have access to this ticket"
	msgNoTicketManage = "User does not have permission to manage this ticket"
	ticketLocalsKey   = "ticket_id"
)

// Tickets guards ticket reads and writes.
type Tickets struct {
	guard *rbac.Guard
}

func NewTickets(guard *rbac.Guard) *Tickets {
	return &Tickets{guard: guard}
}

// CanAccess allows ticket admins, the creator, the assignee and members of
// the ticket's team.
func (t *Tickets) CanAccess(ctx context.Context, req Request, ticketID string) error {
	if err := req.check(); err != nil {
		return err
	}
	admin, err := granted(ctx, t.guard, req.ActorID, rbac.PermManageTickets)
	if err != nil || admin {
		return err
	}

	ticket, err := req.Store.Ticket(ctx, ticketID)
	if err != nil {
		return lookupFailed(err)
	}
	if ticket.CreatedBy == req.ActorID || is(ticket.AssigneeID, req.ActorID) {
		return nil
	}
	if ticket.TeamID != nil {
		member, err := req.Store.IsTeamMember(ctx, *ticket.TeamID, req.ActorID)
		if err != nil {
			return lookupFailed(err)
		}
		if member {
			return nil
		}
	}
	return rbac.NewPermissionError(msgNoTicketAccess)
}

// CanManage allows ticket admins, the assignee and the lead of the ticket's
// team.
func (t *Tickets) CanManage(ctx context.Context, req Request, ticketID string) error {
	if err := req.check(); err != nil {
		return err
	}
	admin, err := granted(ctx, t.guard, req.ActorID, rbac.PermManageTickets)
	if err != nil || admin {
		return err
	}

	ticket, err := req.Store.Ticket(ctx, ticketID)
	if err != nil {
		return lookupFailed(err)
	}
	if is(ticket.AssigneeID, req.ActorID) {
		return nil
	}
	if ticket.TeamID != nil {
		// A dangling team reference has no lead.
		team, err := req.Store.Team(ctx, *ticket.TeamID)
		switch {
		case errors.Is(err, rbac.ErrNotFound):
		case err != nil:
			return lookupFailed(err)
		case is(team.LeadID, req.ActorID):
			return nil
		}
	}
	return rbac.NewPermissionError(msgNoTicketManage)
}

// AccessHandler runs CanAccess on the ticket named by the route param.
func (t *Tickets) AccessHandler(param string) fiber.Handler {
	return t.handler(param, t.CanAccess)
}

// ManageHandler runs CanManage on the ticket named by the route param.
func (t *Tickets) ManageHandler(param string) fiber.Handler {
	return t.handler(param, t.CanManage)
}

func (t *Tickets) handler(param string, check func(context.Context, Request, string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := FromCtx(c)
		if err := req.check(); err != nil {
			return err
		}
		id, err := ParamID(c, param)
		if err != nil {
			return err
		}
		if err := check(c.UserContext(), req, id); err != nil {
			return err
		}
		c.Locals(ticketLocalsKey, id)
		return c.Next()
	}
}

// TicketID returns the ticket id a ticket guard admitted.
func TicketID(c *fiber.Ctx) string {
	id, _ := c.Locals(ticketLocalsKey).(string)
	return id
}

func is(ptr *string, id string) bool {
	return ptr != nil && *ptr == id
}
