package slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, room_id, subroom_id, day, start_time, end_time, shift,
	dentist_ids, nurse_ids, status, appointment_id, queue_number, created_at, updated_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the only component permitted to mutate slot state. All mutations
// are single-statement conditional updates so concurrent bookings and
// closures never observe a read-modify-write window.
type Store struct {
	db querier
}

// NewStore creates a slot store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("slots: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithQuerier allows injecting a mock for tests.
func NewStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("slots: querier required")
	}
	return &Store{db: q}
}

// Get loads a single slot by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	slot, err := scanSlot(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("slots: get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("slots: get %s: %w", id, err)
	}
	return slot, nil
}

// Find returns every slot matching the criteria, ordered by day and start time.
func (s *Store) Find(ctx context.Context, c Criteria) ([]Slot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	where, args := c.whereClause()
	query := fmt.Sprintf(`SELECT %s FROM slots %s ORDER BY day, start_time, id`, slotColumns, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("slots: find: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("slots: scan: %w", err)
		}
		out = append(out, *slot)
	}
	return out, rows.Err()
}

// SetStatus transitions a slot to the given status in one conditional
// update. The transition only succeeds if the current status is one of the
// expected pre-states; otherwise ErrInvalidTransition is returned with the
// slot untouched. Transitioning to disabled also clears the live
// appointment reference and queue number (the audit snapshot keeps them).
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, to Status, meta TransitionMeta, from ...Status) (*Slot, error) {
	if len(from) == 0 {
		for f, targets := range transitionMap {
			for _, t := range targets {
				if t == to {
					from = append(from, f)
				}
			}
		}
	}
	for _, f := range from {
		if !CanTransition(f, to) {
			return nil, fmt.Errorf("slots: %s -> %s: %w", f, to, ErrInvalidTransition)
		}
	}

	fromStrs := make([]string, 0, len(from))
	for _, f := range from {
		fromStrs = append(fromStrs, string(f))
	}

	query := `
		UPDATE slots
		SET status = $2,
		    status_reason = $3,
		    status_changed_by = $4,
		    appointment_id = CASE WHEN $2 = 'disabled' THEN NULL ELSE appointment_id END,
		    queue_number = CASE WHEN $2 = 'disabled' THEN NULL ELSE queue_number END,
		    updated_at = now()
		WHERE id = $1 AND status = ANY($5)
		RETURNING ` + slotColumns

	slot, err := scanSlot(s.db.QueryRow(ctx, query, id, string(to), meta.Reason, meta.Actor, fromStrs))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slots: set status %s: %w", id, err)
	}

	// No row matched: distinguish a missing slot from an illegal pre-state.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("slots: %s is %s, wanted one of %v: %w", id, current.Status, from, ErrInvalidTransition)
}

// Book atomically claims an available slot for an appointment. A slot mid
// closure (or already booked) fails with ErrInvalidTransition rather than
// silently overwriting the other writer.
func (s *Store) Book(ctx context.Context, id uuid.UUID, appointmentID uuid.UUID) (*Slot, error) {
	query := `
		UPDATE slots
		SET status = $2, appointment_id = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + slotColumns

	slot, err := scanSlot(s.db.QueryRow(ctx, query, id, string(StatusBooked), appointmentID, string(StatusAvailable)))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slots: book %s: %w", id, err)
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("slots: book %s while %s: %w", id, current.Status, ErrInvalidTransition)
}

// AssignQueueNumber stamps an issued queue number onto a booked slot.
// Assignment happens exactly once per slot.
func (s *Store) AssignQueueNumber(ctx context.Context, id uuid.UUID, number string) (*Slot, error) {
	query := `
		UPDATE slots
		SET queue_number = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND queue_number IS NULL
		RETURNING ` + slotColumns

	slot, err := scanSlot(s.db.QueryRow(ctx, query, id, number, string(StatusBooked)))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slots: assign queue number %s: %w", id, err)
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.QueueNumber != nil {
		return nil, fmt.Errorf("slots: %s already has %s: %w", id, *current.QueueNumber, ErrQueueNumberAssigned)
	}
	return nil, fmt.Errorf("slots: assign queue number to %s slot: %w", current.Status, ErrInvalidTransition)
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var slot Slot
	var status string
	if err := row.Scan(
		&slot.ID,
		&slot.RoomID,
		&slot.SubRoomID,
		&slot.Day,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Shift,
		&slot.DentistIDs,
		&slot.NurseIDs,
		&status,
		&slot.AppointmentID,
		&slot.QueueNumber,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	); err != nil {
		return nil, err
	}
	slot.Status = Status(status)
	return &slot, nil
}
