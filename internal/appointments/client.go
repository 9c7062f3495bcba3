package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/pkg/logging"
)

var (
	// ErrUnavailable indicates the appointment service could not be reached
	// within the configured timeout/retry budget.
	ErrUnavailable = errors.New("appointment service unavailable")

	// ErrNotFound indicates the appointment id is unknown to the collaborator.
	ErrNotFound = errors.New("appointment not found")

	// ErrTerminalState indicates the appointment is already cancelled or
	// completed and cannot be cancelled again.
	ErrTerminalState = errors.New("appointment in terminal state")
)

// PatientInfo is the contact snapshot needed for cancellation notices.
type PatientInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
	Email string    `json:"email,omitempty"`
}

// Appointment mirrors the collaborator's appointment document, reduced to
// the fields the closure cascade needs.
type Appointment struct {
	ID          uuid.UUID   `json:"id"`
	Patient     PatientInfo `json:"patient"`
	DentistIDs  []uuid.UUID `json:"dentists"`
	NurseIDs    []uuid.UUID `json:"nurses"`
	ServiceID   *uuid.UUID  `json:"service_id,omitempty"`
	PaymentRef  string      `json:"payment_ref,omitempty"`
	InvoiceRef  string      `json:"invoice_ref,omitempty"`
	CancelledAt *time.Time  `json:"cancelled_at,omitempty"`
}

// IsTerminal reports whether the appointment can no longer be cancelled.
func (a *Appointment) IsTerminal() bool {
	return a.CancelledAt != nil
}

// Client talks to the appointment collaborator service over HTTP with a
// bounded per-call timeout and a small retry budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	logger     *logging.Logger
}

// NewClient creates an appointment service client.
func NewClient(baseURL string, timeout time.Duration, retries int, logger *logging.Logger) *Client {
	if baseURL == "" {
		panic("appointments: base URL required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		logger:     logger.Component("appointments"),
	}
}

// GetByIDs loads appointment snapshots for the given ids.
func (c *Client) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := map[string]any{"ids": ids}
	var out struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.do(ctx, http.MethodPost, "/appointments/lookup", body, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

// Cancel cancels an appointment on behalf of a closure. A 409 from the
// collaborator means the appointment already reached a terminal state.
func (c *Client) Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*Appointment, error) {
	body := map[string]any{
		"reason":       reason,
		"cancelled_by": actor,
	}
	var out Appointment
	path := fmt.Sprintf("/appointments/%s/cancel", id)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("appointments: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("appointments: %w: %w", ErrUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("appointments: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("appointment service call failed", "path", path, "attempt", attempt+1, "error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("appointments: %s: %w", path, ErrNotFound)
		case resp.StatusCode == http.StatusConflict:
			resp.Body.Close()
			return fmt.Errorf("appointments: %s: %w", path, ErrTerminalState)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.logger.Warn("appointment service error", "path", path, "attempt", attempt+1, "status", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			resp.Body.Close()
			return fmt.Errorf("appointments: %s: unexpected status %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("appointments: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("appointments: %s: %w: %w", path, ErrUnavailable, lastErr)
}
