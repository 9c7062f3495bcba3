package cascade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/appointments"
	"github.com/dentalops/clinic-platform/internal/events"
	"github.com/dentalops/clinic-platform/internal/slots"
)

type fakeAppointments struct {
	appt      *appointments.Appointment
	cancelErr error
	cancelled []uuid.UUID
}

func (f *fakeAppointments) Cancel(_ context.Context, id uuid.UUID, _ string, _ uuid.UUID) (*appointments.Appointment, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return f.appt, nil
}

type capturingPublisher struct {
	types   []string
	failOn  string
	entries []any
}

func (p *capturingPublisher) Publish(_ context.Context, eventType, _ string, payload any) (uuid.UUID, error) {
	if p.failOn != "" && p.failOn == eventType {
		return uuid.Nil, errors.New("outbox down")
	}
	p.types = append(p.types, eventType)
	p.entries = append(p.entries, payload)
	return uuid.New(), nil
}

func slotWithAppointment() (*slots.Slot, uuid.UUID) {
	apptID := uuid.New()
	return &slots.Slot{
		ID:            uuid.New(),
		RoomID:        uuid.New(),
		Status:        slots.StatusBooked,
		AppointmentID: &apptID,
	}, apptID
}

func TestResolveCancelsAndStagesFacts(t *testing.T) {
	slot, apptID := slotWithAppointment()
	now := time.Now().UTC()
	client := &fakeAppointments{appt: &appointments.Appointment{
		ID:          apptID,
		Patient:     appointments.PatientInfo{ID: uuid.New(), Name: "Jane Doe", Phone: "555-0101"},
		PaymentRef:  "pay-9",
		InvoiceRef:  "inv-3",
		CancelledAt: &now,
	}}
	pub := &capturingPublisher{}
	resolver := NewResolver(client, pub, nil, nil)

	bundle, err := resolver.Resolve(context.Background(), slot, "maintenance", uuid.New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if bundle.AppointmentID != apptID || bundle.PaymentRef != "pay-9" || bundle.Patient.Name != "Jane Doe" {
		t.Fatalf("unexpected bundle: %#v", bundle)
	}
	if len(client.cancelled) != 1 {
		t.Fatalf("expected one cancel call, got %d", len(client.cancelled))
	}
	if len(pub.types) != 2 || pub.types[0] != events.TypeAppointmentCancelled || pub.types[1] != events.TypePaymentCreate {
		t.Fatalf("unexpected events: %v", pub.types)
	}
}

func TestResolveWithoutPaymentSkipsPaymentFact(t *testing.T) {
	slot, apptID := slotWithAppointment()
	client := &fakeAppointments{appt: &appointments.Appointment{ID: apptID, Patient: appointments.PatientInfo{Name: "A"}}}
	pub := &capturingPublisher{}
	resolver := NewResolver(client, pub, nil, nil)

	if _, err := resolver.Resolve(context.Background(), slot, "flooding", uuid.New()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(pub.types) != 1 || pub.types[0] != events.TypeAppointmentCancelled {
		t.Fatalf("expected only the cancellation fact, got %v", pub.types)
	}
}

func TestResolveTerminalAppointmentFails(t *testing.T) {
	slot, _ := slotWithAppointment()
	client := &fakeAppointments{cancelErr: appointments.ErrTerminalState}
	resolver := NewResolver(client, &capturingPublisher{}, nil, nil)

	_, err := resolver.Resolve(context.Background(), slot, "x", uuid.New())
	if !errors.Is(err, appointments.ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
}

func TestResolveUnreachableCollaboratorFails(t *testing.T) {
	slot, _ := slotWithAppointment()
	client := &fakeAppointments{cancelErr: appointments.ErrUnavailable}
	resolver := NewResolver(client, &capturingPublisher{}, nil, nil)

	_, err := resolver.Resolve(context.Background(), slot, "x", uuid.New())
	if !errors.Is(err, appointments.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestResolveSlotWithoutAppointment(t *testing.T) {
	slot := &slots.Slot{ID: uuid.New(), Status: slots.StatusAvailable}
	resolver := NewResolver(&fakeAppointments{}, &capturingPublisher{}, nil, nil)

	if _, err := resolver.Resolve(context.Background(), slot, "x", uuid.New()); err == nil {
		t.Fatal("expected error for slot without appointment")
	}
}
