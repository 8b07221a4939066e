package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/lootrota/internal/adapters/mq/queue"
	"github.com/okian/lootrota/internal/adapters/repository"
	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/history"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("admin token required")
)

func wrapBadRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

// classify maps an error to its status code and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrEmpty):
		return http.StatusNotFound, "worklist_empty"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, cascade.ErrNotInQueue):
		return http.StatusConflict, "not_in_queue"
	case errors.Is(err, cascade.ErrEmptyQueue):
		return http.StatusConflict, "empty_queue"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, cascade.ErrInvalidAction),
		errors.Is(err, repository.ErrInvalidRecord),
		errors.Is(err, repository.ErrInvalidPatch),
		errors.Is(err, queue.ErrInvalidEntry),
		errors.Is(err, history.ErrInvalidDate):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, repository.ErrClosed),
		errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
