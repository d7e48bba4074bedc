package handler

import (
	"errors"
	"net/http"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

// statusFor maps the engine's error kinds onto HTTP status codes and a short
// client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient inventory"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid status transition"
	case errors.Is(err, domain.ErrOptimisticLock):
		return http.StatusConflict, "concurrent update, retry"
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownOperation):
		return http.StatusBadRequest, "invalid request"
	}
	return http.StatusInternalServerError, "internal error"
}
