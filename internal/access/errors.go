package access

import (
	"errors"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields []rbac.FieldError `json:"fields,omitempty"`
}

// ErrorHandler maps guard and service errors onto HTTP responses. Denials
// are 403 and failed checks 503; with maskCheckFailures both are 403.
func ErrorHandler(log *zap.SugaredLogger, maskCheckFailures bool) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(c *fiber.Ctx, err error) error {
		status, body := Classify(err, maskCheckFailures)
		if status >= fiber.StatusInternalServerError {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
		}
		return c.Status(status).JSON(body)
	}
}

// Classify returns the status and body for err.
func Classify(err error, maskCheckFailures bool) (int, ErrorResponse) {
	var (
		fe *fiber.Error
		ve *rbac.ValidationError
		pe *rbac.PermissionError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code, ErrorResponse{Error: fe.Message}
	case errors.Is(err, ErrUnauthenticated):
		return fiber.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"}
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ErrorResponse{Error: ve.Message, Fields: ve.Fields}
	case errors.As(err, &pe):
		if pe.CheckFailed() && !maskCheckFailures {
			return fiber.StatusServiceUnavailable, ErrorResponse{Error: pe.Message}
		}
		return fiber.StatusForbidden, ErrorResponse{Error: pe.Message}
	case errors.Is(err, rbac.ErrNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "Not found"}
	default:
		return fiber.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}
