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

// SlotReader is the read surface of the slot store.
type SlotReader interface {
	Get(ctx context.Context, id uuid.UUID) (*slots.Slot, error)
	Find(ctx context.Context, c slots.Criteria) ([]slots.Slot, error)
}

// SlotsHandler exposes read-only slot lookups for schedulers.
type SlotsHandler struct {
	store  SlotReader
	logger *logging.Logger
}

// NewSlotsHandler creates a slots handler.
func NewSlotsHandler(store SlotReader, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{store: store, logger: logger.Component("http.slots")}
}

// Get returns one slot.
// GET /slots/{id}
func (h *SlotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slot id"})
		return
	}
	slot, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

// Find returns every slot matching the query criteria.
// GET /slots?date=...&room_id=...&shift=...&status=...
func (h *SlotsHandler) Find(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	found, err := h.store.Find(r.Context(), c)
	if err != nil {
		respondError(w, err)
		return
	}
	if found == nil {
		found = []slots.Slot{}
	}
	respondJSON(w, http.StatusOK, found)
}

func criteriaFromQuery(r *http.Request) (slots.Criteria, error) {
	q := r.URL.Query()
	c := slots.Criteria{Shift: q.Get("shift")}

	parseDate := func(key string, dst **time.Time) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return err
		}
		*dst = &d
		return nil
	}
	parseID := func(key string, dst **uuid.UUID) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*dst = &id
		return nil
	}

	if err := parseDate("date", &c.Date); err != nil {
		return c, err
	}
	if err := parseDate("start_date", &c.StartDate); err != nil {
		return c, err
	}
	if err := parseDate("end_date", &c.EndDate); err != nil {
		return c, err
	}
	if err := parseID("room_id", &c.RoomID); err != nil {
		return c, err
	}
	if err := parseID("subroom_id", &c.SubRoomID); err != nil {
		return c, err
	}
	if err := parseID("dentist_id", &c.DentistID); err != nil {
		return c, err
	}
	if err := parseID("nurse_id", &c.NurseID); err != nil {
		return c, err
	}
	if v := q.Get("status"); v != "" {
		c.Statuses = []slots.Status{slots.Status(v)}
	}
	return c, nil
}
