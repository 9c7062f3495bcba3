package audit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/clinic-platform/internal/cascade"
	"github.com/dentalops/clinic-platform/internal/directory"
	"github.com/dentalops/clinic-platform/internal/observability/metrics"
	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// unknownName is the placeholder used when collaborator enrichment fails.
// The audit record is always written, even with partial enrichment.
const unknownName = "Unknown"

// BuildInput carries everything the orchestrator resolved for one operation.
type BuildInput struct {
	OperationType OperationType
	Action        Action
	Criteria      CriteriaSnapshot
	Reason        string
	Actor         uuid.UUID

	// AffectedSlots are snapshots taken before the status flip.
	AffectedSlots []slots.Slot
	Cancellations []cascade.Cancellation
	Failures      []FailureEntry
}

// Builder assembles enriched ClosureOperation records. Lookup failures
// degrade to placeholder names; they never abort the record.
type Builder struct {
	directory directory.Directory
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger
}

// NewBuilder creates an audit record builder.
func NewBuilder(dir directory.Directory, m *metrics.SchedulingMetrics, logger *logging.Logger) *Builder {
	if dir == nil {
		panic("audit: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{directory: dir, metrics: m, logger: logger.Component("audit")}
}

// Build produces the audit record for one orchestrator invocation.
func (b *Builder) Build(ctx context.Context, in BuildInput) *ClosureOperation {
	names := newNameCache(b)

	op := &ClosureOperation{
		ID:            uuid.New(),
		OperationType: in.OperationType,
		Action:        in.Action,
		Criteria:      in.Criteria,
		Reason:        in.Reason,
		PerformedBy:   in.Actor,
		Failures:      in.Failures,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}

	op.AffectedRooms = b.groupByRoom(ctx, in.AffectedSlots, names)
	op.CancelledPatients = b.enrichCancellations(ctx, in.Cancellations, names)
	op.StaffImpacts = b.staffImpacts(ctx, in.AffectedSlots, names)

	recipients := 0
	for _, p := range op.CancelledPatients {
		if p.PatientPhone != "" || p.PatientEmail != "" {
			recipients++
		}
	}
	op.Stats = Stats{
		TotalSlotsChanged:      len(in.AffectedSlots),
		RoomsAffected:          len(op.AffectedRooms),
		AppointmentsCancelled:  len(in.Cancellations),
		NotificationRecipients: recipients,
		Failures:               len(in.Failures),
	}
	return op
}

func (b *Builder) groupByRoom(ctx context.Context, affected []slots.Slot, names *nameCache) []AffectedRoom {
	byRoom := make(map[uuid.UUID][]SlotSnapshot)
	for _, slot := range affected {
		byRoom[slot.RoomID] = append(byRoom[slot.RoomID], SlotSnapshot{
			SlotID:        slot.ID,
			SubRoomID:     slot.SubRoomID,
			Day:           slot.Day,
			StartTime:     slot.StartTime,
			EndTime:       slot.EndTime,
			Shift:         slot.Shift,
			PreviousState: string(slot.Status),
			DentistIDs:    slot.DentistIDs,
			NurseIDs:      slot.NurseIDs,
			AppointmentID: slot.AppointmentID,
		})
	}

	rooms := make([]AffectedRoom, 0, len(byRoom))
	for roomID, slotSnaps := range byRoom {
		rooms = append(rooms, AffectedRoom{
			RoomID:        roomID,
			RoomName:      names.room(ctx, roomID),
			Slots:         slotSnaps,
			SlotsDisabled: len(slotSnaps),
		})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomID.String() < rooms[j].RoomID.String() })
	return rooms
}

func (b *Builder) enrichCancellations(ctx context.Context, cancellations []cascade.Cancellation, names *nameCache) []CancelledPatient {
	out := make([]CancelledPatient, 0, len(cancellations))
	for _, c := range cancellations {
		patient := CancelledPatient{
			AppointmentID: c.AppointmentID,
			SlotID:        c.SlotID,
			RoomID:        c.RoomID,
			RoomName:      names.room(ctx, c.RoomID),
			PatientID:     c.Patient.ID,
			PatientName:   c.Patient.Name,
			PatientPhone:  c.Patient.Phone,
			PatientEmail:  c.Patient.Email,
			PaymentRef:    c.PaymentRef,
			InvoiceRef:    c.InvoiceRef,
			CancelledAt:   c.CancelledAt,
		}
		if patient.PatientName == "" {
			patient.PatientName = unknownName
		}
		for _, id := range c.DentistIDs {
			patient.DentistNames = append(patient.DentistNames, names.user(ctx, id))
		}
		for _, id := range c.NurseIDs {
			patient.NurseNames = append(patient.NurseNames, names.user(ctx, id))
		}
		out = append(out, patient)
	}
	return out
}

func (b *Builder) staffImpacts(ctx context.Context, affected []slots.Slot, names *nameCache) []StaffImpact {
	type staffKey struct {
		id   uuid.UUID
		role string
	}
	impacted := make(map[staffKey][]uuid.UUID)
	for _, slot := range affected {
		if slot.HasAppointment() {
			continue
		}
		for _, id := range slot.DentistIDs {
			key := staffKey{id, "dentist"}
			impacted[key] = append(impacted[key], slot.ID)
		}
		for _, id := range slot.NurseIDs {
			key := staffKey{id, "nurse"}
			impacted[key] = append(impacted[key], slot.ID)
		}
	}

	out := make([]StaffImpact, 0, len(impacted))
	for key, slotIDs := range impacted {
		out = append(out, StaffImpact{
			StaffID:   key.id,
			StaffName: names.user(ctx, key.id),
			Role:      key.role,
			SlotIDs:   slotIDs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID.String() < out[j].StaffID.String() })
	return out
}

// nameCache deduplicates directory lookups within a single build.
type nameCache struct {
	b     *Builder
	users map[uuid.UUID]string
	rooms map[uuid.UUID]string
}

func newNameCache(b *Builder) *nameCache {
	return &nameCache{
		b:     b,
		users: make(map[uuid.UUID]string),
		rooms: make(map[uuid.UUID]string),
	}
}

func (n *nameCache) user(ctx context.Context, id uuid.UUID) string {
	if name, ok := n.users[id]; ok {
		return name
	}
	name := unknownName
	start := time.Now()
	user, err := n.b.directory.GetUserByID(ctx, id)
	n.b.metrics.ObserveCollaboratorLatency("identity", time.Since(start).Seconds())
	if err != nil {
		n.b.logger.Warn("user enrichment failed", "user_id", id, "error", err)
	} else if user.Name != "" {
		name = user.Name
	}
	n.users[id] = name
	return name
}

func (n *nameCache) room(ctx context.Context, id uuid.UUID) string {
	if name, ok := n.rooms[id]; ok {
		return name
	}
	name := unknownName
	start := time.Now()
	room, err := n.b.directory.GetRoomByID(ctx, id)
	n.b.metrics.ObserveCollaboratorLatency("rooms", time.Since(start).Seconds())
	if err != nil {
		n.b.logger.Warn("room enrichment failed", "room_id", id, "error", err)
	} else if room.Name != "" {
		name = room.Name
	}
	n.rooms[id] = name
	return name
}
