package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
	"github.com/wangshifu/cyclemap/internal/pkg/routefmt"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, unprocessable, internal_error, unavailable
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "unprocessable", msg)
}

func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps service errors onto HTTP statuses.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexOutOfRange), errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrMalformedDocument),
		errors.Is(err, domain.ErrInvalidCoordinate),
		errors.Is(err, domain.ErrUnsupportedGeometry):
		return errUnprocessable(c, err.Error())
	case errors.Is(err, routefmt.ErrUnknownFormat):
		return errBadRequest(c, err.Error())
	case errors.Is(err, usecases.ErrSnapshotsDisabled), errors.Is(err, usecases.ErrNoSource):
		return errUnavailable(c, err.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}
