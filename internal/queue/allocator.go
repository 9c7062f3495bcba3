package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// numberWidth is the zero-padded width of issued queue numbers.
	numberWidth = 3

	// maxNumber is the largest value the fixed-width format can carry.
	// Exceeding it is a detectable error, never silent truncation.
	maxNumber = 999
)

// ErrExhausted indicates the per-scope sequence ran past the fixed width.
var ErrExhausted = errors.New("queue numbers exhausted for scope")

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Allocator issues per-room, per-day queue numbers. Issuance is a single
// atomic increment-and-return against a uniquely keyed counter row, so
// concurrent callers always receive a contiguous, duplicate-free run.
type Allocator struct {
	db rowQuerier
}

// NewAllocator creates an allocator backed by a pgx pool.
func NewAllocator(pool *pgxpool.Pool) *Allocator {
	if pool == nil {
		panic("queue: pgx pool required")
	}
	return &Allocator{db: pool}
}

// NewAllocatorWithQuerier allows injecting a mock for tests.
func NewAllocatorWithQuerier(q rowQuerier) *Allocator {
	if q == nil {
		panic("queue: querier required")
	}
	return &Allocator{db: q}
}

// Next atomically issues the next number for (room, sub-room, day) and
// returns it zero-padded. A nil sub-room is normalized to the zero UUID so
// the counter key stays unique.
func (a *Allocator) Next(ctx context.Context, day time.Time, roomID uuid.UUID, subRoomID *uuid.UUID) (string, error) {
	query := `
		INSERT INTO queue_counters (room_id, subroom_id, day, value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (room_id, subroom_id, day)
		DO UPDATE SET value = queue_counters.value + 1
		RETURNING value
	`
	var value int
	if err := a.db.QueryRow(ctx, query, roomID, normalizeSubRoom(subRoomID), dateOnly(day)).Scan(&value); err != nil {
		return "", fmt.Errorf("queue: issue number: %w", err)
	}
	if value > maxNumber {
		return "", fmt.Errorf("queue: scope (%s, %s): value %d: %w", roomID, dateOnly(day).Format("2006-01-02"), value, ErrExhausted)
	}
	return Format(value), nil
}

// Peek returns the number the next Call would receive without issuing it.
func (a *Allocator) Peek(ctx context.Context, day time.Time, roomID uuid.UUID, subRoomID *uuid.UUID) (string, error) {
	query := `SELECT value FROM queue_counters WHERE room_id = $1 AND subroom_id = $2 AND day = $3`
	var value int
	err := a.db.QueryRow(ctx, query, roomID, normalizeSubRoom(subRoomID), dateOnly(day)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		value = 0
	} else if err != nil {
		return "", fmt.Errorf("queue: peek number: %w", err)
	}
	if value+1 > maxNumber {
		return "", fmt.Errorf("queue: scope (%s, %s): %w", roomID, dateOnly(day).Format("2006-01-02"), ErrExhausted)
	}
	return Format(value + 1), nil
}

// Format renders a counter value in the clinic's fixed-width convention.
func Format(value int) string {
	return fmt.Sprintf("%0*d", numberWidth, value)
}

func normalizeSubRoom(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
