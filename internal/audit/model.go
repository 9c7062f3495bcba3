package audit

import (
	"time"

	"github.com/google/uuid"
)

// OperationType classifies how the closure scope was expressed.
type OperationType string

const (
	OpDisableAllDay    OperationType = "disable_all_day"
	OpEnableAllDay     OperationType = "enable_all_day"
	OpDisableFlexible  OperationType = "disable_flexible"
	OpEnableFlexible   OperationType = "enable_flexible"
	OpToggleIndividual OperationType = "toggle_individual"
)

// Action is the direction of the status change.
type Action string

const (
	ActionDisable Action = "disable"
	ActionEnable  Action = "enable"
)

// RecordStatus tracks whether a disable operation was later reversed.
type RecordStatus string

const (
	StatusActive            RecordStatus = "active"
	StatusPartiallyRestored RecordStatus = "partially_restored"
	StatusFullyRestored     RecordStatus = "fully_restored"
)

// CriteriaSnapshot preserves the scope the caller asked for, independent of
// the live slot documents.
type CriteriaSnapshot struct {
	Date      *time.Time  `json:"date,omitempty"`
	StartDate *time.Time  `json:"start_date,omitempty"`
	EndDate   *time.Time  `json:"end_date,omitempty"`
	Shift     string      `json:"shift,omitempty"`
	RoomID    *uuid.UUID  `json:"room_id,omitempty"`
	SubRoomID *uuid.UUID  `json:"subroom_id,omitempty"`
	DentistID *uuid.UUID  `json:"dentist_id,omitempty"`
	NurseID   *uuid.UUID  `json:"nurse_id,omitempty"`
	SlotIDs   []uuid.UUID `json:"slot_ids,omitempty"`
}

// SlotSnapshot is the audit view of one affected slot, valid even if the
// slot is later re-enabled or mutated.
type SlotSnapshot struct {
	SlotID        uuid.UUID   `json:"slot_id"`
	SubRoomID     *uuid.UUID  `json:"subroom_id,omitempty"`
	Day           time.Time   `json:"day"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	Shift         string      `json:"shift,omitempty"`
	PreviousState string      `json:"previous_state"`
	DentistIDs    []uuid.UUID `json:"dentist_ids,omitempty"`
	NurseIDs      []uuid.UUID `json:"nurse_ids,omitempty"`
	AppointmentID *uuid.UUID  `json:"appointment_id,omitempty"`
}

// AffectedRoom groups the slots one room contributed to the operation.
type AffectedRoom struct {
	RoomID        uuid.UUID      `json:"room_id"`
	RoomName      string         `json:"room_name"`
	Slots         []SlotSnapshot `json:"slots"`
	SlotsDisabled int            `json:"slots_disabled"`
}

// CancelledPatient is the enriched snapshot of one cascade-cancelled
// appointment kept for compliance and support lookup.
type CancelledPatient struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	RoomID        uuid.UUID `json:"room_id"`
	RoomName      string    `json:"room_name"`
	PatientID     uuid.UUID `json:"patient_id,omitempty"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	DentistNames  []string  `json:"dentist_names,omitempty"`
	NurseNames    []string  `json:"nurse_names,omitempty"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	InvoiceRef    string    `json:"invoice_ref,omitempty"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// StaffImpact lists a staff member whose slots were removed with no patient
// attached, so schedulers can reassign them.
type StaffImpact struct {
	StaffID   uuid.UUID   `json:"staff_id"`
	StaffName string      `json:"staff_name"`
	Role      string      `json:"role"`
	SlotIDs   []uuid.UUID `json:"slot_ids"`
}

// FailureEntry records one slot whose cascade could not complete.
type FailureEntry struct {
	SlotID        uuid.UUID  `json:"slot_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Reason        string     `json:"reason"`
}

// Stats summarizes the operation for listings and dashboards.
type Stats struct {
	TotalSlotsChanged      int `json:"total_slots_changed"`
	RoomsAffected          int `json:"rooms_affected"`
	AppointmentsCancelled  int `json:"appointments_cancelled"`
	NotificationRecipients int `json:"notification_recipients"`
	Failures               int `json:"failures"`
}

// ClosureOperation is the immutable audit record describing one closure or
// reopen operation. Restoration only touches the top-level status fields;
// the affected-entity snapshots are never rewritten.
type ClosureOperation struct {
	ID            uuid.UUID
	OperationType OperationType
	Action        Action
	Criteria      CriteriaSnapshot
	Reason        string
	PerformedBy   uuid.UUID

	AffectedRooms     []AffectedRoom
	CancelledPatients []CancelledPatient
	StaffImpacts      []StaffImpact
	Failures          []FailureEntry
	Stats             Stats

	Status        RecordStatus
	RestoredBy    *uuid.UUID
	RestoredAt    *time.Time
	RestoreReason string

	CreatedAt time.Time
}

// SlotIDs returns every slot id snapshotted across the affected rooms.
func (op *ClosureOperation) SlotIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, room := range op.AffectedRooms {
		for _, slot := range room.Slots {
			ids = append(ids, slot.SlotID)
		}
	}
	return ids
}
