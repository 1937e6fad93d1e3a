package handler

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/moviemind/movie-rag/internal/port"
)

// ErrorDetail is the inner payload of the error envelope.
type ErrorDetail struct {
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status"`
	Message    string `json:"message"`
	Step       string `json:"step"`
}

// ErrorResponse is the envelope returned for every failed request.
type ErrorResponse struct {
	Detail ErrorDetail `json:"detail"`
}

// writeError maps err onto the error envelope. Unrecognized errors become a
// generic internal error that still carries the original message.
func writeError(c fiber.Ctx, err error) error {
	status := port.HTTPStatus(err)
	slog.Error("request failed", "step", port.Step(err), "status", status, "error", err)

	return c.Status(status).JSON(ErrorResponse{
		Detail: ErrorDetail{
			Status:     port.Code(err),
			HTTPStatus: status,
			Message:    err.Error(),
			Step:       port.Step(err),
		},
	})
}

// validationError rejects a request before any I/O happens.
func validationError(c fiber.Ctx, format string, args ...any) error {
	return writeError(c, &port.StepError{
		Step: "validation",
		Err:  fmt.Errorf("%w: %s", port.ErrValidation, fmt.Sprintf(format, args...)),
	})
}
