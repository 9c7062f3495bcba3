package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// QueueService is the queue-number surface the handler drives.
type QueueService interface {
	NextNumber(ctx context.Context, day time.Time, roomID uuid.UUID, subRoomID *uuid.UUID) (string, error)
	CallPatient(ctx context.Context, slotID uuid.UUID) (*slots.Slot, error)
	CompleteVisit(ctx context.Context, slotID uuid.UUID) error
}

// QueueHandler exposes queue-number issuance and visit completion.
type QueueHandler struct {
	service QueueService
	logger  *logging.Logger
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(service QueueService, logger *logging.Logger) *QueueHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueHandler{service: service, logger: logger.Component("http.queue")}
}

type nextNumberResponse struct {
	NextNumber string `json:"next_number"`
}

// NextNumber previews the next queue number for a room/day scope.
// GET /queue/next-number?date=YYYY-MM-DD&room_id=...&subroom_id=...
func (h *QueueHandler) NextNumber(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := time.Parse(dateLayout, q.Get("date"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "date is required (YYYY-MM-DD)"})
		return
	}
	roomID, err := uuid.Parse(q.Get("room_id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "room_id is required"})
		return
	}
	var subRoomID *uuid.UUID
	if v := q.Get("subroom_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid subroom_id"})
			return
		}
		subRoomID = &id
	}

	number, err := h.service.NextNumber(r.Context(), day, roomID, subRoomID)
	if err != nil {
		h.logger.Error("next number preview failed", "room_id", roomID, "error", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nextNumberResponse{NextNumber: number})
}

// Call issues a queue number to the visit record riding on a booked slot.
// POST /records/{id}/call
func (h *QueueHandler) Call(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid record id"})
		return
	}
	slot, err := h.service.CallPatient(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

// Complete finishes a called visit and emits the downstream facts.
// POST /records/{id}/complete
func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid record id"})
		return
	}
	if err := h.service.CompleteVisit(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
