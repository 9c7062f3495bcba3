package closure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dentalops/clinic-platform/internal/audit"
	"github.com/dentalops/clinic-platform/internal/cascade"
	"github.com/dentalops/clinic-platform/internal/observability/metrics"
	"github.com/dentalops/clinic-platform/internal/slots"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// SlotStore is the slice of the slot store the orchestrator needs.
type SlotStore interface {
	Find(ctx context.Context, c slots.Criteria) ([]slots.Slot, error)
	SetStatus(ctx context.Context, id uuid.UUID, to slots.Status, meta slots.TransitionMeta, from ...slots.Status) (*slots.Slot, error)
}

// CascadeResolver cancels the appointment riding on a slot being closed.
type CascadeResolver interface {
	Resolve(ctx context.Context, slot *slots.Slot, reason string, actor uuid.UUID) (*cascade.Cancellation, error)
}

// AuditBuilder assembles the enriched operation record.
type AuditBuilder interface {
	Build(ctx context.Context, in audit.BuildInput) *audit.ClosureOperation
}

// AuditStore persists operation records and answers restoration lookups.
type AuditStore interface {
	Insert(ctx context.Context, op *audit.ClosureOperation) error
	ActiveOperationsForSlots(ctx context.Context, slotIDs []uuid.UUID) ([]audit.ClosureOperation, error)
	UpdateRestoration(ctx context.Context, id uuid.UUID, status audit.RecordStatus, restoredBy uuid.UUID, reason string) error
}

// Summary is what every closure/reopen call returns: explicit partial
// failure instead of a binary success signal.
type Summary struct {
	AuditID               uuid.UUID            `json:"audit_id,omitempty"`
	SlotsChanged          int                  `json:"slots_changed"`
	SlotsSkipped          int                  `json:"slots_skipped"`
	AppointmentsCancelled int                  `json:"appointments_cancelled"`
	Rooms                 []uuid.UUID          `json:"rooms"`
	Errors                []audit.FailureEntry `json:"errors,omitempty"`
	RestoredRecords       []uuid.UUID          `json:"restored_records,omitempty"`
}

// Orchestrator runs the closure pipeline: resolve scope, cascade, flip
// slot state, write the audit record. Per-slot failures are collected,
// never raised; the operation always completes with a summary.
type Orchestrator struct {
	slots   SlotStore
	cascade CascadeResolver
	builder AuditBuilder
	records AuditStore
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewOrchestrator creates a closure orchestrator.
func NewOrchestrator(store SlotStore, resolver CascadeResolver, builder AuditBuilder, records AuditStore, m *metrics.SchedulingMetrics, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("closure: slot store required")
	}
	if resolver == nil {
		panic("closure: cascade resolver required")
	}
	if builder == nil {
		panic("closure: audit builder required")
	}
	if records == nil {
		panic("closure: audit store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		slots:   store,
		cascade: resolver,
		builder: builder,
		records: records,
		metrics: m,
		logger:  logger.Component("closure"),
		tracer:  otel.Tracer("clinic.internal.closure"),
	}
}

// DisableIndividual closes an explicit set of slots.
func (o *Orchestrator) DisableIndividual(ctx context.Context, slotIDs []uuid.UUID, reason string, actor uuid.UUID) (*Summary, error) {
	return o.disable(ctx, audit.OpToggleIndividual, slots.Criteria{SlotIDs: slotIDs}, reason, actor)
}

// DisableFlexible closes every slot matching the criteria.
func (o *Orchestrator) DisableFlexible(ctx context.Context, c slots.Criteria, reason string, actor uuid.UUID) (*Summary, error) {
	return o.disable(ctx, audit.OpDisableFlexible, c, reason, actor)
}

// DisableAllDay closes every slot on the given date.
func (o *Orchestrator) DisableAllDay(ctx context.Context, date time.Time, reason string, actor uuid.UUID) (*Summary, error) {
	day := date.Truncate(24 * time.Hour)
	return o.disable(ctx, audit.OpDisableAllDay, slots.Criteria{Date: &day}, reason, actor)
}

// EnableIndividual reopens an explicit set of slots.
func (o *Orchestrator) EnableIndividual(ctx context.Context, slotIDs []uuid.UUID, reason string, actor uuid.UUID) (*Summary, error) {
	return o.enable(ctx, audit.OpToggleIndividual, slots.Criteria{SlotIDs: slotIDs}, reason, actor)
}

// EnableFlexible reopens every slot matching the criteria.
func (o *Orchestrator) EnableFlexible(ctx context.Context, c slots.Criteria, reason string, actor uuid.UUID) (*Summary, error) {
	return o.enable(ctx, audit.OpEnableFlexible, c, reason, actor)
}

// EnableAllDay reopens every slot on the given date.
func (o *Orchestrator) EnableAllDay(ctx context.Context, date time.Time, reason string, actor uuid.UUID) (*Summary, error) {
	day := date.Truncate(24 * time.Hour)
	return o.enable(ctx, audit.OpEnableAllDay, slots.Criteria{Date: &day}, reason, actor)
}

func (o *Orchestrator) disable(ctx context.Context, opType audit.OperationType, c slots.Criteria, reason string, actor uuid.UUID) (*Summary, error) {
	ctx, span := o.tracer.Start(ctx, "closure.disable")
	defer span.End()
	span.SetAttributes(attribute.String("operation_type", string(opType)))

	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required to disable slots", ErrValidation)
	}

	resolved, err := o.resolveScope(ctx, c)
	if err != nil {
		return nil, err
	}

	var (
		affected      []slots.Slot
		cancellations []cascade.Cancellation
		failures      []audit.FailureEntry
		skipped       int
	)
	meta := slots.TransitionMeta{Actor: actor, Reason: reason}
	for i := range resolved {
		slot := resolved[i]
		if slot.Status == slots.StatusDisabled {
			skipped++
			continue
		}

		// Cascade first: the slot is only flipped once its appointment is
		// safely cancelled. A cascade failure leaves the slot untouched.
		if slot.HasAppointment() {
			bundle, err := o.cascade.Resolve(ctx, &slot, reason, actor)
			if err != nil {
				o.metrics.ObserveCascadeFailure()
				o.logger.Warn("cascade failed, slot skipped",
					"slot_id", slot.ID, "appointment_id", slot.AppointmentID, "error", err)
				failures = append(failures, audit.FailureEntry{
					SlotID:        slot.ID,
					AppointmentID: slot.AppointmentID,
					Reason:        err.Error(),
				})
				continue
			}
			cancellations = append(cancellations, *bundle)
		}

		if _, err := o.slots.SetStatus(ctx, slot.ID, slots.StatusDisabled, meta, slot.Status); err != nil {
			failures = append(failures, audit.FailureEntry{SlotID: slot.ID, Reason: err.Error()})
			continue
		}
		affected = append(affected, slot)
	}
	o.metrics.AddSlotsChanged(string(audit.ActionDisable), len(affected))

	record := o.builder.Build(ctx, audit.BuildInput{
		OperationType: opType,
		Action:        audit.ActionDisable,
		Criteria:      toCriteriaSnapshot(c),
		Reason:        reason,
		Actor:         actor,
		AffectedSlots: affected,
		Cancellations: cancellations,
		Failures:      failures,
	})
	if err := o.records.Insert(ctx, record); err != nil {
		// The slots are already flipped; surface the record loss instead of
		// pretending the operation did not happen.
		return nil, fmt.Errorf("closure: persist audit record: %w", err)
	}

	summary := &Summary{
		AuditID:               record.ID,
		SlotsChanged:          len(affected),
		SlotsSkipped:          skipped,
		AppointmentsCancelled: len(cancellations),
		Rooms:                 roomIDs(record.AffectedRooms),
		Errors:                failures,
	}
	o.metrics.ObserveClosure(string(opType), string(audit.ActionDisable), outcome(summary))
	o.logger.Info("closure executed",
		"operation_type", opType,
		"audit_id", record.ID,
		"slots_changed", summary.SlotsChanged,
		"appointments_cancelled", summary.AppointmentsCancelled,
		"failures", len(failures),
	)
	return summary, nil
}

func (o *Orchestrator) enable(ctx context.Context, opType audit.OperationType, c slots.Criteria, reason string, actor uuid.UUID) (*Summary, error) {
	ctx, span := o.tracer.Start(ctx, "closure.enable")
	defer span.End()
	span.SetAttributes(attribute.String("operation_type", string(opType)))

	resolved, err := o.resolveScope(ctx, c)
	if err != nil {
		return nil, err
	}

	var (
		affected []slots.Slot
		failures []audit.FailureEntry
		skipped  int
	)
	meta := slots.TransitionMeta{Actor: actor, Reason: reason}
	for i := range resolved {
		slot := resolved[i]
		if slot.Status != slots.StatusDisabled {
			skipped++
			continue
		}
		// Reopening never re-creates cancelled appointments; it only
		// returns the slot to the bookable pool.
		if _, err := o.slots.SetStatus(ctx, slot.ID, slots.StatusAvailable, meta, slots.StatusDisabled); err != nil {
			failures = append(failures, audit.FailureEntry{SlotID: slot.ID, Reason: err.Error()})
			continue
		}
		affected = append(affected, slot)
	}
	o.metrics.AddSlotsChanged(string(audit.ActionEnable), len(affected))

	restored, err := o.markRestored(ctx, affected, actor, reason)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SlotsChanged:    len(affected),
		SlotsSkipped:    skipped,
		Rooms:           slotRoomIDs(affected),
		Errors:          failures,
		RestoredRecords: restored,
	}
	o.metrics.ObserveClosure(string(opType), string(audit.ActionEnable), outcome(summary))
	o.logger.Info("reopen executed",
		"operation_type", opType,
		"slots_changed", summary.SlotsChanged,
		"restored_records", len(restored),
		"failures", len(failures),
	)
	return summary, nil
}

func (o *Orchestrator) resolveScope(ctx context.Context, c slots.Criteria) ([]slots.Slot, error) {
	resolved, err := o.slots.Find(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("closure: resolve scope: %w", err)
	}
	if len(resolved) == 0 {
		return nil, ErrEmptyScope
	}
	return resolved, nil
}

// markRestored flips the restoration status on the disable records that
// originally covered the reopened slots. The record is fully restored only
// when none of its snapshotted slots remain disabled.
func (o *Orchestrator) markRestored(ctx context.Context, reopened []slots.Slot, actor uuid.UUID, reason string) ([]uuid.UUID, error) {
	if len(reopened) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(reopened))
	for _, slot := range reopened {
		ids = append(ids, slot.ID)
	}

	records, err := o.records.ActiveOperationsForSlots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("closure: find covering records: %w", err)
	}

	var restored []uuid.UUID
	for _, record := range records {
		status := audit.StatusFullyRestored
		remaining, err := o.slots.Find(ctx, slots.Criteria{
			SlotIDs:  record.SlotIDs(),
			Statuses: []slots.Status{slots.StatusDisabled},
		})
		if err != nil {
			return nil, fmt.Errorf("closure: check remaining slots for %s: %w", record.ID, err)
		}
		if len(remaining) > 0 {
			status = audit.StatusPartiallyRestored
		}
		if err := o.records.UpdateRestoration(ctx, record.ID, status, actor, reason); err != nil {
			return nil, fmt.Errorf("closure: mark %s %s: %w", record.ID, status, err)
		}
		restored = append(restored, record.ID)
	}
	return restored, nil
}

func outcome(s *Summary) string {
	switch {
	case len(s.Errors) == 0:
		return "success"
	case s.SlotsChanged > 0:
		return "partial"
	default:
		return "failed"
	}
}

func roomIDs(rooms []audit.AffectedRoom) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.RoomID)
	}
	return out
}

func slotRoomIDs(affected []slots.Slot) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, s := range affected {
		if _, ok := seen[s.RoomID]; ok {
			continue
		}
		seen[s.RoomID] = struct{}{}
		out = append(out, s.RoomID)
	}
	return out
}

func toCriteriaSnapshot(c slots.Criteria) audit.CriteriaSnapshot {
	return audit.CriteriaSnapshot{
		Date:      c.Date,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Shift:     c.Shift,
		RoomID:    c.RoomID,
		SubRoomID: c.SubRoomID,
		DentistID: c.DentistID,
		NurseID:   c.NurseID,
		SlotIDs:   c.SlotIDs,
	}
}
