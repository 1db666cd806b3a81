// Package access holds the resource-level authorization guards for tickets
// and the knowledge base, and the fiber adapters that run them in a request
// pipeline.
package access

import (
	"context"
	"errors"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestKey = "access_request"

// ErrUnauthenticated is returned when a guard runs without a caller identity.
var ErrUnauthenticated = errors.New("authentication required")

var errUnbound = errors.New("access: request context not bound")

// Request is the authorization context of one request.
type Request struct {
	ActorID string
	Store   DomainStore
}

// Bind builds the Request once per request from the authenticated actor.
func Bind(store DomainStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(requestKey, Request{ActorID: auth.ActorID(c), Store: store})
		return c.Next()
	}
}

// FromCtx returns the Request bound to c, or the zero Request.
func FromCtx(c *fiber.Ctx) Request {
	req, _ := c.Locals(requestKey).(Request)
	return req
}

func (r Request) check() error {
	if r.ActorID == "" {
		return ErrUnauthenticated
	}
	if r.Store == nil {
		return errUnbound
	}
	return nil
}

// Require admits requests whose actor holds permission.
func Require(guard *rbac.Guard, permission string, opts ...rbac.Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID := auth.ActorID(c)
		if actorID == "" {
			return ErrUnauthenticated
		}
		if _, err := guard.RequirePermission(c.UserContext(), actorID, permission, opts...); err != nil {
			return err
		}
		return c.Next()
	}
}

// granted runs one permission check and treats a denial as false.
func granted(ctx context.Context, guard *rbac.Guard, actorID, permission string) (bool, error) {
	_, err := guard.RequirePermission(ctx, actorID, permission)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, rbac.ErrPermissionDenied) {
		return false, nil
	}
	return false, err
}

// lookupFailed keeps not-found errors and turns any other store failure into
// a failed check.
func lookupFailed(err error) error {
	if errors.Is(err, rbac.ErrNotFound) {
		return err
	}
	return &rbac.PermissionError{Message: "Failed to validate permission", Err: err}
}

// ParamID returns the route param as a canonical uuid.
func ParamID(c *fiber.Ctx, param string) (string, error) {
	raw := c.Params(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &rbac.ValidationError{
			Message: "invalid id",
			Fields:  []rbac.FieldError{{Field: param, Message: "must be a uuid"}},
		}
	}
	return id.String(), nil
}
