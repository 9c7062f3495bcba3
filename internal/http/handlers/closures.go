package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/audit"
	"github.com/dentalops/clinic-platform/internal/closure"
	"github.com/dentalops/clinic-platform/internal/http/middleware"
	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

const dateLayout = "2006-01-02"

// ClosureService is the orchestrator surface the handler drives.
type ClosureService interface {
	DisableIndividual(ctx context.Context, slotIDs []uuid.UUID, reason string, actor uuid.UUID) (*closure.Summary, error)
	DisableFlexible(ctx context.Context, c slots.Criteria, reason string, actor uuid.UUID) (*closure.Summary, error)
	DisableAllDay(ctx context.Context, date time.Time, reason string, actor uuid.UUID) (*closure.Summary, error)
	EnableIndividual(ctx context.Context, slotIDs []uuid.UUID, reason string, actor uuid.UUID) (*closure.Summary, error)
	EnableFlexible(ctx context.Context, c slots.Criteria, reason string, actor uuid.UUID) (*closure.Summary, error)
	EnableAllDay(ctx context.Context, date time.Time, reason string, actor uuid.UUID) (*closure.Summary, error)
}

// AuditReader is the audit store surface the handler reads from.
type AuditReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*audit.ClosureOperation, error)
	List(ctx context.Context, f audit.Filter) ([]audit.ClosureOperation, int, error)
	CancelledPatients(ctx context.Context, f audit.Filter) ([]audit.CancelledPatient, error)
}

// ClosuresHandler exposes the closure/reopen operations and the audit views.
type ClosuresHandler struct {
	service ClosureService
	records AuditReader
	logger  *logging.Logger
}

// NewClosuresHandler creates a closures handler.
func NewClosuresHandler(service ClosureService, records AuditReader, logger *logging.Logger) *ClosuresHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClosuresHandler{service: service, records: records, logger: logger.Component("http.closures")}
}

type closureRequest struct {
	Action    string      `json:"action"`
	Reason    string      `json:"reason"`
	SlotIDs   []uuid.UUID `json:"slot_ids,omitempty"`
	AllDay    bool        `json:"all_day,omitempty"`
	Date      string      `json:"date,omitempty"`
	StartDate string      `json:"start_date,omitempty"`
	EndDate   string      `json:"end_date,omitempty"`
	Shift     string      `json:"shift,omitempty"`
	RoomID    *uuid.UUID  `json:"room_id,omitempty"`
	SubRoomID *uuid.UUID  `json:"subroom_id,omitempty"`
	DentistID *uuid.UUID  `json:"dentist_id,omitempty"`
	NurseID   *uuid.UUID  `json:"nurse_id,omitempty"`
}

// Execute runs a closure or reopen operation.
// POST /closures
func (h *ClosuresHandler) Execute(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing actor identity", http.StatusUnauthorized)
		return
	}

	var req closureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	summary, err := h.dispatch(r.Context(), req, actor)
	if err != nil {
		h.logger.Warn("closure request failed", "action", req.Action, "error", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *ClosuresHandler) dispatch(ctx context.Context, req closureRequest, actor uuid.UUID) (*closure.Summary, error) {
	disable := false
	switch req.Action {
	case "disable":
		disable = true
	case "enable":
	default:
		return nil, fmt.Errorf("%w: action must be disable or enable", closure.ErrValidation)
	}

	switch {
	case len(req.SlotIDs) > 0:
		if disable {
			return h.service.DisableIndividual(ctx, req.SlotIDs, req.Reason, actor)
		}
		return h.service.EnableIndividual(ctx, req.SlotIDs, req.Reason, actor)

	case req.AllDay:
		day, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: all_day requires a date (YYYY-MM-DD)", closure.ErrValidation)
		}
		if disable {
			return h.service.DisableAllDay(ctx, day, req.Reason, actor)
		}
		return h.service.EnableAllDay(ctx, day, req.Reason, actor)

	default:
		c, err := req.criteria()
		if err != nil {
			return nil, err
		}
		if disable {
			return h.service.DisableFlexible(ctx, c, req.Reason, actor)
		}
		return h.service.EnableFlexible(ctx, c, req.Reason, actor)
	}
}

func (req closureRequest) criteria() (slots.Criteria, error) {
	c := slots.Criteria{
		Shift:     req.Shift,
		RoomID:    req.RoomID,
		SubRoomID: req.SubRoomID,
		DentistID: req.DentistID,
		NurseID:   req.NurseID,
	}
	parse := func(value string, dst **time.Time) error {
		if value == "" {
			return nil
		}
		d, err := time.Parse(dateLayout, value)
		if err != nil {
			return fmt.Errorf("%w: bad date %q", closure.ErrValidation, value)
		}
		*dst = &d
		return nil
	}
	if err := parse(req.Date, &c.Date); err != nil {
		return c, err
	}
	if err := parse(req.StartDate, &c.StartDate); err != nil {
		return c, err
	}
	if err := parse(req.EndDate, &c.EndDate); err != nil {
		return c, err
	}
	return c, nil
}

type listResponse struct {
	Operations []audit.ClosureOperation `json:"operations"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
	Total      int                      `json:"total"`
}

// List returns a page of closure operation records.
// GET /closures
func (h *ClosuresHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ops, total, err := h.records.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list closures failed", "error", err)
		respondError(w, err)
		return
	}
	if ops == nil {
		ops = []audit.ClosureOperation{}
	}
	respondJSON(w, http.StatusOK, listResponse{Operations: ops, Page: f.Page, Limit: f.Limit, Total: total})
}

// Get returns a single closure operation record.
// GET /closures/{id}
func (h *ClosuresHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid operation id"})
		return
	}
	op, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, op)
}

// Patients returns the cancelled-patient snapshots of one operation.
// GET /closures/{id}/patients
func (h *ClosuresHandler) Patients(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid operation id"})
		return
	}
	op, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	patients := op.CancelledPatients
	if patients == nil {
		patients = []audit.CancelledPatient{}
	}
	respondJSON(w, http.StatusOK, patients)
}

// AllPatients flattens cancelled-patient snapshots across operations.
// GET /closures/patients/all
func (h *ClosuresHandler) AllPatients(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	patients, err := h.records.CancelledPatients(r.Context(), f)
	if err != nil {
		h.logger.Error("list cancelled patients failed", "error", err)
		respondError(w, err)
		return
	}
	if patients == nil {
		patients = []audit.CancelledPatient{}
	}
	respondJSON(w, http.StatusOK, patients)
}

func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{Status: audit.RecordStatus(q.Get("status"))}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid page %q", v)
		}
		f.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = limit
	}
	if v := q.Get("start_date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q", v)
		}
		f.StartDate = &d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q", v)
		}
		// Inclusive end of day for the listing filter.
		end := d.Add(24 * time.Hour)
		f.EndDate = &end
	}
	if v := q.Get("room_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("invalid room_id %q", v)
		}
		f.RoomID = &id
	}
	return f, nil
}
