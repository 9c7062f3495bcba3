package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published for downstream services. Delivery is at-least-once;
// every payload carries the business id consumers key their idempotency on.
const (
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeServiceMarkAsUsed    = "service.mark_as_used"
	TypeRecordCompleted      = "record.completed"
	TypePaymentCreate        = "payment.create"
)

// AppointmentCancelled is emitted once per appointment cancelled by a closure.
type AppointmentCancelled struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	RoomID        uuid.UUID `json:"room_id"`
	PatientID     uuid.UUID `json:"patient_id,omitempty"`
	Reason        string    `json:"reason"`
	CancelledBy   uuid.UUID `json:"cancelled_by"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// ServiceMarkAsUsed is emitted when a visit completes and its service
// entitlement is consumed.
type ServiceMarkAsUsed struct {
	ServiceID     uuid.UUID `json:"service_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	UsedAt        time.Time `json:"used_at"`
}

// RecordCompleted is emitted when a called patient's visit finishes.
type RecordCompleted struct {
	RecordID    uuid.UUID `json:"record_id"`
	SlotID      uuid.UUID `json:"slot_id"`
	QueueNumber string    `json:"queue_number,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// PaymentCreate asks the billing service to raise a refund/deposit entry
// for a cancelled appointment that already carried a payment.
type PaymentCreate struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	InvoiceRef    string    `json:"invoice_ref,omitempty"`
	Reason        string    `json:"reason"`
	RequestedAt   time.Time `json:"requested_at"`
}
