package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dentalops/clinic-platform/internal/audit"
	"github.com/dentalops/clinic-platform/internal/closure"
	"github.com/dentalops/clinic-platform/internal/queue"
	"github.com/dentalops/clinic-platform/internal/slots"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is
// a 500 with a generic message so internals do not leak to callers.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, slots.ErrNotFound), errors.Is(err, audit.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, closure.ErrEmptyScope):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, closure.ErrValidation), errors.Is(err, slots.ErrMalformedCriteria):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, slots.ErrInvalidTransition), errors.Is(err, slots.ErrQueueNumberAssigned):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, queue.ErrExhausted):
		status, msg = http.StatusConflict, err.Error()
	}
	respondJSON(w, status, errorResponse{Error: msg})
}
