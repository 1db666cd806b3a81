package access

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const ticketInputKey = "ticket_input"

// TicketInput is the body of a ticket creation request.
type TicketInput struct {
	Title       string  `json:"title" validate:"required,notblank,max=200"`
	Description string  `json:"description" validate:"required,notblank"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      string  `json:"status" validate:"omitempty,oneof=open in_progress pending resolved closed"`
	TeamID      *string `json:"team_id" validate:"omitnil,uuid"`
	CategoryID  *string `json:"category_id" validate:"omitnil,uuid"`
	AssigneeID  *string `json:"assignee_id" validate:"omitnil,uuid"`
}

// TicketUpdate is the body of a ticket update request. Nil fields are left
// unchanged.
type TicketUpdate struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string `json:"description" validate:"omitnil,notblank"`
	Priority    *string `json:"priority" validate:"omitnil,oneof=low medium high urgent"`
	Status      *string `json:"status" validate:"omitnil,oneof=open in_progress pending resolved closed"`
	TeamID      *string `json:"team_id" validate:"omitnil,uuid"`
	CategoryID  *string `json:"category_id" validate:"omitnil,uuid"`
	AssigneeID  *string `json:"assignee_id" validate:"omitnil,uuid"`
}

func (u TicketUpdate) empty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil && u.Status == nil &&
		u.TeamID == nil && u.CategoryID == nil && u.AssigneeID == nil
}

// TicketRules switches on conditional requiredness at creation.
type TicketRules struct {
	RequireTeam     bool
	RequireCategory bool
	RequireAssignee bool
}

// TicketValidator checks ticket payload shape. Failures are always
// *rbac.ValidationError.
type TicketValidator struct {
	validate *validator.Validate
	rules    TicketRules
}

func NewTicketValidator(rules TicketRules) *TicketValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &TicketValidator{validate: v, rules: rules}
}

func (tv *TicketValidator) ValidateCreation(in *TicketInput) error {
	fields := tv.fieldErrors(in)
	if tv.rules.RequireTeam && blank(in.TeamID) {
		fields = appendMissing(fields, "team_id")
	}
	if tv.rules.RequireCategory && blank(in.CategoryID) {
		fields = appendMissing(fields, "category_id")
	}
	if tv.rules.RequireAssignee && blank(in.AssigneeID) {
		fields = appendMissing(fields, "assignee_id")
	}
	if len(fields) > 0 {
		return &rbac.ValidationError{Message: "invalid ticket", Fields: fields}
	}
	return nil
}

func (tv *TicketValidator) ValidateUpdate(in *TicketUpdate) error {
	if in.empty() {
		return rbac.NewValidationError("no fields to update")
	}
	if fields := tv.fieldErrors(in); len(fields) > 0 {
		return &rbac.ValidationError{Message: "invalid ticket update", Fields: fields}
	}
	return nil
}

// CreationHandler parses and validates a TicketInput and stores it for the
// next handler.
func (tv *TicketValidator) CreationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in TicketInput
		if err := c.BodyParser(&in); err != nil {
			return rbac.NewValidationError("invalid request body")
		}
		if err := tv.ValidateCreation(&in); err != nil {
			return err
		}
		c.Locals(ticketInputKey, &in)
		return c.Next()
	}
}

// UpdateHandler parses and validates a TicketUpdate and stores it for the
// next handler.
func (tv *TicketValidator) UpdateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in TicketUpdate
		if err := c.BodyParser(&in); err != nil {
			return rbac.NewValidationError("invalid request body")
		}
		if err := tv.ValidateUpdate(&in); err != nil {
			return err
		}
		c.Locals(ticketInputKey, &in)
		return c.Next()
	}
}

// ValidatedTicket returns the payload stored by CreationHandler.
func ValidatedTicket(c *fiber.Ctx) *TicketInput {
	in, _ := c.Locals(ticketInputKey).(*TicketInput)
	return in
}

// ValidatedUpdate returns the payload stored by UpdateHandler.
func ValidatedUpdate(c *fiber.Ctx) *TicketUpdate {
	in, _ := c.Locals(ticketInputKey).(*TicketUpdate)
	return in
}

func (tv *TicketValidator) fieldErrors(s any) []rbac.FieldError {
	err := tv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []rbac.FieldError{{Field: "body", Message: err.Error()}}
	}
	fields := make([]rbac.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, rbac.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid":
		return "must be a uuid"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func appendMissing(fields []rbac.FieldError, name string) []rbac.FieldError {
	for _, f := range fields {
		if f.Field == name {
			return fields
		}
	}
	return append(fields, rbac.FieldError{Field: name, Message: "is required"})
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
