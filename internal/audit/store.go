package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no closure operation matches the id.
var ErrNotFound = errors.New("audit: operation not found")

const operationColumns = `id, operation_type, action, criteria, reason, performed_by,
	affected_rooms, cancelled_patients, staff_impacts, failures, stats,
	status, restored_by, restored_at, restore_reason, created_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Filter narrows closure operation listings.
type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    RecordStatus
	RoomID    *uuid.UUID
	Page      int
	Limit     int
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return f
}

// Store persists closure operation records. Records are append-only except
// for the restoration status fields; snapshots are never rewritten.
type Store struct {
	db querier
}

// NewStore creates an audit store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithQuerier allows injecting a mock for tests.
func NewStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("audit: querier required")
	}
	return &Store{db: q}
}

// Insert writes the operation record and its slot membership rows. The
// membership table is what lets a later restore find which record disabled
// a given slot without unpacking jsonb snapshots.
func (s *Store) Insert(ctx context.Context, op *ClosureOperation) error {
	criteria, err := json.Marshal(op.Criteria)
	if err != nil {
		return fmt.Errorf("audit: marshal criteria: %w", err)
	}
	rooms, err := json.Marshal(op.AffectedRooms)
	if err != nil {
		return fmt.Errorf("audit: marshal rooms: %w", err)
	}
	patients, err := json.Marshal(op.CancelledPatients)
	if err != nil {
		return fmt.Errorf("audit: marshal patients: %w", err)
	}
	staff, err := json.Marshal(op.StaffImpacts)
	if err != nil {
		return fmt.Errorf("audit: marshal staff impacts: %w", err)
	}
	failures, err := json.Marshal(op.Failures)
	if err != nil {
		return fmt.Errorf("audit: marshal failures: %w", err)
	}
	stats, err := json.Marshal(op.Stats)
	if err != nil {
		return fmt.Errorf("audit: marshal stats: %w", err)
	}

	query := `
		INSERT INTO closure_operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	if _, err := s.db.Exec(ctx, query,
		op.ID, string(op.OperationType), string(op.Action), criteria, op.Reason, op.PerformedBy,
		rooms, patients, staff, failures, stats,
		string(op.Status), op.RestoredBy, op.RestoredAt, op.RestoreReason, op.CreatedAt,
	); err != nil {
		return fmt.Errorf("audit: insert operation %s: %w", op.ID, err)
	}

	for _, slotID := range op.SlotIDs() {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO closure_operation_slots (operation_id, slot_id) VALUES ($1, $2)`,
			op.ID, slotID,
		); err != nil {
			return fmt.Errorf("audit: insert membership %s/%s: %w", op.ID, slotID, err)
		}
	}
	return nil
}

// GetByID loads one operation record.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*ClosureOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM closure_operations WHERE id = $1`
	op, err := scanOperation(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit: get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("audit: get %s: %w", id, err)
	}
	return op, nil
}

// List returns a page of operation records, newest first, plus the total
// count for the filter.
func (s *Store) List(ctx context.Context, f Filter) ([]ClosureOperation, int, error) {
	f = f.normalize()
	where, args := f.whereClause()

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM closure_operations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count operations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM closure_operations%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		operationColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list operations: %w", err)
	}
	defer rows.Close()

	var out []ClosureOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("audit: scan operation: %w", err)
		}
		out = append(out, *op)
	}
	return out, total, rows.Err()
}

// UpdateRestoration flips the restoration status on the original record.
// Only the status fields change; the snapshots stay as written.
func (s *Store) UpdateRestoration(ctx context.Context, id uuid.UUID, status RecordStatus, restoredBy uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE closure_operations
		SET status = $2, restored_by = $3, restored_at = now(), restore_reason = $4
		WHERE id = $1`,
		id, string(status), restoredBy, reason,
	)
	if err != nil {
		return fmt.Errorf("audit: update restoration %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("audit: update restoration %s: %w", id, ErrNotFound)
	}
	return nil
}

// ActiveOperationsForSlots returns the not-yet-fully-restored disable
// records that cover any of the given slots, via the membership table.
func (s *Store) ActiveOperationsForSlots(ctx context.Context, slotIDs []uuid.UUID) ([]ClosureOperation, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT ` + prefixColumns("o.") + `
		FROM closure_operations o
		JOIN closure_operation_slots m ON m.operation_id = o.id
		WHERE m.slot_id = ANY($1)
		  AND o.action = 'disable'
		  AND o.status <> 'fully_restored'
		ORDER BY o.created_at DESC, o.id`

	rows, err := s.db.Query(ctx, query, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("audit: active operations for slots: %w", err)
	}
	defer rows.Close()

	var out []ClosureOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan operation: %w", err)
		}
		out = append(out, *op)
	}
	return out, rows.Err()
}

// CancelledPatients flattens the patient snapshots across every record
// matching the filter, for the support lookup views.
func (s *Store) CancelledPatients(ctx context.Context, f Filter) ([]CancelledPatient, error) {
	f.Page, f.Limit = 1, 100
	ops, _, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []CancelledPatient
	for _, op := range ops {
		out = append(out, op.CancelledPatients...)
	}
	return out, nil
}

func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at < $%d", *f.EndDate)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.RoomID != nil {
		add("affected_rooms @> $%d", fmt.Sprintf(`[{"room_id":"%s"}]`, f.RoomID))
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

func prefixColumns(prefix string) string {
	cols := ""
	for i, c := range []string{
		"id", "operation_type", "action", "criteria", "reason", "performed_by",
		"affected_rooms", "cancelled_patients", "staff_impacts", "failures", "stats",
		"status", "restored_by", "restored_at", "restore_reason", "created_at",
	} {
		if i > 0 {
			cols += ", "
		}
		cols += prefix + c
	}
	return cols
}

func scanOperation(row pgx.Row) (*ClosureOperation, error) {
	var (
		op       ClosureOperation
		opType   string
		action   string
		status   string
		criteria []byte
		rooms    []byte
		patients []byte
		staff    []byte
		failures []byte
		stats    []byte
	)
	if err := row.Scan(
		&op.ID, &opType, &action, &criteria, &op.Reason, &op.PerformedBy,
		&rooms, &patients, &staff, &failures, &stats,
		&status, &op.RestoredBy, &op.RestoredAt, &op.RestoreReason, &op.CreatedAt,
	); err != nil {
		return nil, err
	}
	op.OperationType = OperationType(opType)
	op.Action = Action(action)
	op.Status = RecordStatus(status)

	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{criteria, &op.Criteria},
		{rooms, &op.AffectedRooms},
		{patients, &op.CancelledPatients},
		{staff, &op.StaffImpacts},
		{failures, &op.Failures},
		{stats, &op.Stats},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &op, nil
}
