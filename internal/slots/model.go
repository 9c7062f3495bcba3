package slots

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a bookable slot.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusDisabled  Status = "disabled"
)

// Slot is one bookable unit of clinic time/room/staff capacity.
// A slot that has ever carried an appointment is never physically
// removed; closures mark it disabled instead.
type Slot struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	SubRoomID *uuid.UUID
	Day       time.Time
	StartTime time.Time
	EndTime   time.Time
	Shift     string

	DentistIDs []uuid.UUID
	NurseIDs   []uuid.UUID

	Status        Status
	AppointmentID *uuid.UUID
	QueueNumber   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAppointment reports whether the slot carries a live appointment reference.
func (s *Slot) HasAppointment() bool {
	return s.AppointmentID != nil && *s.AppointmentID != uuid.Nil
}

// TransitionMeta records who requested a status change and why.
type TransitionMeta struct {
	Actor  uuid.UUID
	Reason string
}
