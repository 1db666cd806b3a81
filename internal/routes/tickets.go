package routes

import (
	"fmt"
	"strings"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ticketHandlers struct {
	db    *gorm.DB
	store access.DomainStore
}

func (h *ticketHandlers) create(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	in := access.ValidatedTicket(c)
	ticket := rbac.Ticket{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      orDefault(in.Status, "open"),
		Priority:    orDefault(in.Priority, "medium"),
		CreatedBy:   actorID,
		AssigneeID:  in.AssigneeID,
		TeamID:      in.TeamID,
		CategoryID:  in.CategoryID,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&ticket).Error; err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(ticket)
}

func (h *ticketHandlers) get(c *fiber.Ctx) error {
	ticket, err := h.store.Ticket(c.UserContext(), access.TicketID(c))
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

func (h *ticketHandlers) update(c *fiber.Ctx) error {
	id := access.TicketID(c)
	in := access.ValidatedUpdate(c)

	changes := map[string]any{}
	set := func(column string, v *string) {
		if v != nil {
			changes[column] = *v
		}
	}
	set("title", in.Title)
	set("description", in.Description)
	set("priority", in.Priority)
	set("status", in.Status)
	set("team_id", in.TeamID)
	set("category_id", in.CategoryID)
	set("assignee_id", in.AssigneeID)

	err := h.db.WithContext(c.UserContext()).Model(&rbac.Ticket{ID: id}).Updates(changes).Error
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", id, err)
	}
	return h.get(c)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
