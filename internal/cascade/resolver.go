package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/appointments"
	"github.com/dentalops/clinic-platform/internal/events"
	"github.com/dentalops/clinic-platform/internal/observability/metrics"
	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// AppointmentClient is the slice of the appointment collaborator the
// resolver needs.
type AppointmentClient interface {
	Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*appointments.Appointment, error)
}

// Publisher stages events for at-least-once delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType, businessKey string, payload any) (uuid.UUID, error)
}

// Cancellation is the side-effect bundle produced by cancelling one slot's
// appointment: the confirmation, the financial snapshot, and the contact
// snapshot needed downstream for notification.
type Cancellation struct {
	SlotID        uuid.UUID
	RoomID        uuid.UUID
	AppointmentID uuid.UUID
	Patient       appointments.PatientInfo
	DentistIDs    []uuid.UUID
	NurseIDs      []uuid.UUID
	PaymentRef    string
	InvoiceRef    string
	CancelledAt   time.Time
}

// Resolver cancels the appointment riding on a slot that is being closed.
// Failures are scoped to the slot: the orchestrator records them and moves
// on to the next slot.
type Resolver struct {
	appointments AppointmentClient
	publisher    Publisher
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
}

// NewResolver creates a cascade resolver.
func NewResolver(client AppointmentClient, publisher Publisher, m *metrics.SchedulingMetrics, logger *logging.Logger) *Resolver {
	if client == nil {
		panic("cascade: appointment client required")
	}
	if publisher == nil {
		panic("cascade: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		appointments: client,
		publisher:    publisher,
		metrics:      m,
		logger:       logger.Component("cascade"),
	}
}

// Resolve cancels the slot's appointment and stages the downstream facts.
// The returned bundle is what the audit record snapshots.
func (r *Resolver) Resolve(ctx context.Context, slot *slots.Slot, reason string, actor uuid.UUID) (*Cancellation, error) {
	if !slot.HasAppointment() {
		return nil, fmt.Errorf("cascade: slot %s has no appointment", slot.ID)
	}
	appointmentID := *slot.AppointmentID

	start := time.Now()
	appt, err := r.appointments.Cancel(ctx, appointmentID, reason, actor)
	r.metrics.ObserveCollaboratorLatency("appointments", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("cascade: cancel appointment %s: %w", appointmentID, err)
	}

	cancelledAt := time.Now().UTC()
	if appt.CancelledAt != nil {
		cancelledAt = *appt.CancelledAt
	}

	bundle := &Cancellation{
		SlotID:        slot.ID,
		RoomID:        slot.RoomID,
		AppointmentID: appointmentID,
		Patient:       appt.Patient,
		DentistIDs:    appt.DentistIDs,
		NurseIDs:      appt.NurseIDs,
		PaymentRef:    appt.PaymentRef,
		InvoiceRef:    appt.InvoiceRef,
		CancelledAt:   cancelledAt,
	}

	if _, err := r.publisher.Publish(ctx, events.TypeAppointmentCancelled, appointmentID.String(), events.AppointmentCancelled{
		AppointmentID: appointmentID,
		SlotID:        slot.ID,
		RoomID:        slot.RoomID,
		PatientID:     appt.Patient.ID,
		Reason:        reason,
		CancelledBy:   actor,
		CancelledAt:   cancelledAt,
	}); err != nil {
		// The appointment is already cancelled remotely; losing the fact
		// would strand downstream consumers, so surface as a slot failure.
		return nil, fmt.Errorf("cascade: publish cancellation fact: %w", err)
	}

	if appt.PaymentRef != "" || appt.InvoiceRef != "" {
		if _, err := r.publisher.Publish(ctx, events.TypePaymentCreate, appointmentID.String(), events.PaymentCreate{
			AppointmentID: appointmentID,
			PaymentRef:    appt.PaymentRef,
			InvoiceRef:    appt.InvoiceRef,
			Reason:        reason,
			RequestedAt:   cancelledAt,
		}); err != nil {
			r.logger.Warn("failed to stage payment fact", "appointment_id", appointmentID, "error", err)
		}
	}

	r.logger.Info("appointment cancelled by closure",
		"appointment_id", appointmentID,
		"slot_id", slot.ID,
		"payment_ref", appt.PaymentRef,
	)
	return bundle, nil
}
