package queue

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

// SlotStore is the slice of the slot store the queue service needs.
type SlotStore interface {
	Get(ctx context.Context, id uuid.UUID) (*slots.Slot, error)
	AssignQueueNumber(ctx context.Context, id uuid.UUID, number string) (*slots.Slot, error)
}

// Publisher stages events for at-least-once delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType, businessKey string, payload any) (uuid.UUID, error)
}

// AppointmentReader loads appointment snapshots from the collaborator.
type AppointmentReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]appointments.Appointment, error)
}

// Service wires queue number issuance into the slot lifecycle: calling a
// patient stamps the next number onto their slot, completing a visit emits
// the downstream facts.
type Service struct {
	allocator    *Allocator
	slots        SlotStore
	publisher    Publisher
	appointments AppointmentReader
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
}

// NewService creates the queue service.
func NewService(allocator *Allocator, slotStore SlotStore, publisher Publisher, reader AppointmentReader, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if allocator == nil {
		panic("queue: allocator required")
	}
	if slotStore == nil {
		panic("queue: slot store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		allocator:    allocator,
		slots:        slotStore,
		publisher:    publisher,
		appointments: reader,
		metrics:      m,
		logger:       logger.Component("queue"),
	}
}

// NextNumber previews the next queue number for a scope without issuing it.
func (s *Service) NextNumber(ctx context.Context, day time.Time, roomID uuid.UUID, subRoomID *uuid.UUID) (string, error) {
	return s.allocator.Peek(ctx, day, roomID, subRoomID)
}

// CallPatient issues the next queue number for the slot's room/day scope
// and stamps it onto the slot. The slot must be booked and not yet called.
func (s *Service) CallPatient(ctx context.Context, slotID uuid.UUID) (*slots.Slot, error) {
	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != slots.StatusBooked || !slot.HasAppointment() {
		return nil, fmt.Errorf("queue: call %s slot: %w", slot.Status, slots.ErrInvalidTransition)
	}
	if slot.QueueNumber != nil {
		return nil, fmt.Errorf("queue: slot %s: %w", slotID, slots.ErrQueueNumberAssigned)
	}

	number, err := s.allocator.Next(ctx, slot.Day, slot.RoomID, slot.SubRoomID)
	if err != nil {
		return nil, err
	}

	updated, err := s.slots.AssignQueueNumber(ctx, slotID, number)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveQueueNumberIssued()
	s.logger.Info("patient called",
		"slot_id", slotID,
		"room_id", slot.RoomID,
		"queue_number", number,
	)
	return updated, nil
}

// CompleteVisit marks a called visit as finished, emitting record.completed
// and, when the appointment consumed a service entitlement,
// service.mark_as_used. The appointment lookup is best-effort: an
// unreachable collaborator never blocks completion.
func (s *Service) CompleteVisit(ctx context.Context, slotID uuid.UUID) error {
	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.Status != slots.StatusBooked || !slot.HasAppointment() {
		return fmt.Errorf("queue: complete %s slot: %w", slot.Status, slots.ErrInvalidTransition)
	}

	appointmentID := *slot.AppointmentID
	now := time.Now().UTC()

	queueNumber := ""
	if slot.QueueNumber != nil {
		queueNumber = *slot.QueueNumber
	}
	if _, err := s.publisher.Publish(ctx, events.TypeRecordCompleted, appointmentID.String(), events.RecordCompleted{
		RecordID:    appointmentID,
		SlotID:      slot.ID,
		QueueNumber: queueNumber,
		CompletedAt: now,
	}); err != nil {
		return fmt.Errorf("queue: publish record completed: %w", err)
	}

	if s.appointments != nil {
		appts, err := s.appointments.GetByIDs(ctx, []uuid.UUID{appointmentID})
		if err != nil {
			s.logger.Warn("appointment lookup failed during completion", "appointment_id", appointmentID, "error", err)
			return nil
		}
		if len(appts) == 1 && appts[0].ServiceID != nil {
			if _, err := s.publisher.Publish(ctx, events.TypeServiceMarkAsUsed, appts[0].ServiceID.String(), events.ServiceMarkAsUsed{
				ServiceID:     *appts[0].ServiceID,
				AppointmentID: appointmentID,
				UsedAt:        now,
			}); err != nil {
				s.logger.Warn("failed to publish service usage", "appointment_id", appointmentID, "error", err)
			}
		}
	}
	return nil
}
