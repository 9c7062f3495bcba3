package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/audit"
	"github.com/dentalops/clinic-platform/internal/closure"
	"github.com/dentalops/clinic-platform/internal/http/middleware"
	"github.com/dentalops/clinic-platform/internal/slots"
)

const testSecret = "test-secret"

type fakeClosureService struct {
	lastCall string
	summary  *closure.Summary
	err      error
}

func (f *fakeClosureService) DisableIndividual(_ context.Context, _ []uuid.UUID, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "disable_individual"
	return f.summary, f.err
}

func (f *fakeClosureService) DisableFlexible(_ context.Context, _ slots.Criteria, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "disable_flexible"
	return f.summary, f.err
}

func (f *fakeClosureService) DisableAllDay(_ context.Context, _ time.Time, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "disable_all_day"
	return f.summary, f.err
}

func (f *fakeClosureService) EnableIndividual(_ context.Context, _ []uuid.UUID, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "enable_individual"
	return f.summary, f.err
}

func (f *fakeClosureService) EnableFlexible(_ context.Context, _ slots.Criteria, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "enable_flexible"
	return f.summary, f.err
}

func (f *fakeClosureService) EnableAllDay(_ context.Context, _ time.Time, _ string, _ uuid.UUID) (*closure.Summary, error) {
	f.lastCall = "enable_all_day"
	return f.summary, f.err
}

type fakeAuditReader struct {
	op       *audit.ClosureOperation
	ops      []audit.ClosureOperation
	total    int
	patients []audit.CancelledPatient
	err      error
}

func (f *fakeAuditReader) GetByID(_ context.Context, id uuid.UUID) (*audit.ClosureOperation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.op == nil || f.op.ID != id {
		return nil, audit.ErrNotFound
	}
	return f.op, nil
}

func (f *fakeAuditReader) List(_ context.Context, _ audit.Filter) ([]audit.ClosureOperation, int, error) {
	return f.ops, f.total, f.err
}

func (f *fakeAuditReader) CancelledPatients(_ context.Context, _ audit.Filter) ([]audit.CancelledPatient, error) {
	return f.patients, f.err
}

func closuresRouter(svc ClosureService, records AuditReader) http.Handler {
	h := NewClosuresHandler(svc, records, nil)
	r := chi.NewRouter()
	r.Use(middleware.AdminJWT(testSecret))
	r.Post("/closures", h.Execute)
	r.Get("/closures", h.List)
	r.Get("/closures/patients/all", h.AllPatients)
	r.Get("/closures/{id}", h.Get)
	r.Get("/closures/{id}/patients", h.Patients)
	return r
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestExecuteDispatchesBySpec(t *testing.T) {
	cases := []struct {
		name     string
		body     map[string]any
		expected string
	}{
		{"slot ids disable", map[string]any{"action": "disable", "reason": "x", "slot_ids": []string{uuid.NewString()}}, "disable_individual"},
		{"all day disable", map[string]any{"action": "disable", "reason": "x", "all_day": true, "date": "2025-05-01"}, "disable_all_day"},
		{"flexible disable", map[string]any{"action": "disable", "reason": "x", "date": "2025-05-01", "shift": "morning"}, "disable_flexible"},
		{"slot ids enable", map[string]any{"action": "enable", "slot_ids": []string{uuid.NewString()}}, "enable_individual"},
		{"all day enable", map[string]any{"action": "enable", "all_day": true, "date": "2025-05-01"}, "enable_all_day"},
		{"flexible enable", map[string]any{"action": "enable", "start_date": "2025-05-01", "end_date": "2025-05-03"}, "enable_flexible"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeClosureService{summary: &closure.Summary{SlotsChanged: 1}}
			router := closuresRouter(svc, &fakeAuditReader{})

			rec := doJSON(t, router, http.MethodPost, "/closures", tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if svc.lastCall != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, svc.lastCall)
			}
		})
	}
}

func TestExecuteRequiresAuth(t *testing.T) {
	router := closuresRouter(&fakeClosureService{}, &fakeAuditReader{})
	req := httptest.NewRequest(http.MethodPost, "/closures", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestExecuteMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", closure.ErrValidation, http.StatusBadRequest},
		{"empty scope", closure.ErrEmptyScope, http.StatusNotFound},
		{"malformed criteria", slots.ErrMalformedCriteria, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeClosureService{err: tc.err}
			router := closuresRouter(svc, &fakeAuditReader{})

			body := map[string]any{"action": "disable", "reason": "x", "slot_ids": []string{uuid.NewString()}}
			rec := doJSON(t, router, http.MethodPost, "/closures", body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestExecuteRejectsUnknownAction(t *testing.T) {
	router := closuresRouter(&fakeClosureService{}, &fakeAuditReader{})

	rec := doJSON(t, router, http.MethodPost, "/closures", map[string]any{"action": "toggle"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListReturnsPaginationMetadata(t *testing.T) {
	reader := &fakeAuditReader{
		ops:   []audit.ClosureOperation{{ID: uuid.New(), Status: audit.StatusActive}},
		total: 42,
	}
	router := closuresRouter(&fakeClosureService{}, reader)

	rec := doJSON(t, router, http.MethodGet, "/closures?page=3&limit=10&status=active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 42 || resp.Page != 3 || resp.Limit != 10 || len(resp.Operations) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetOperationNotFound(t *testing.T) {
	router := closuresRouter(&fakeClosureService{}, &fakeAuditReader{})

	rec := doJSON(t, router, http.MethodGet, "/closures/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPatientsReturnsSnapshots(t *testing.T) {
	op := &audit.ClosureOperation{
		ID: uuid.New(),
		CancelledPatients: []audit.CancelledPatient{
			{AppointmentID: uuid.New(), PatientName: "Jane Doe", PatientPhone: "555-0101"},
		},
	}
	router := closuresRouter(&fakeClosureService{}, &fakeAuditReader{op: op})

	rec := doJSON(t, router, http.MethodGet, "/closures/"+op.ID.String()+"/patients", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var patients []audit.CancelledPatient
	if err := json.Unmarshal(rec.Body.Bytes(), &patients); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(patients) != 1 || patients[0].PatientName != "Jane Doe" {
		t.Fatalf("unexpected patients: %+v", patients)
	}
}

func TestAllPatientsRejectsBadDateFilter(t *testing.T) {
	router := closuresRouter(&fakeClosureService{}, &fakeAuditReader{})

	rec := doJSON(t, router, http.MethodGet, "/closures/patients/all?start_date=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
