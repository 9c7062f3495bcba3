package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var slotCols = []string{
	"id", "room_id", "subroom_id", "day", "start_time", "end_time", "shift",
	"dentist_ids", "nurse_ids", "status", "appointment_id", "queue_number",
	"created_at", "updated_at",
}

func slotRow(id, roomID uuid.UUID, status string, appointmentID *uuid.UUID) *pgxmock.Rows {
	now := time.Now().UTC()
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(slotCols).AddRow(
		id, roomID, nil, day, day.Add(9*time.Hour), day.Add(10*time.Hour), "morning",
		[]uuid.UUID{uuid.New()}, []uuid.UUID{}, status, appointmentID, nil,
		now, now,
	)
}

func TestStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()

	mock.ExpectQuery("SELECT .* FROM slots WHERE id").WithArgs(id).
		WillReturnRows(slotRow(id, roomID, "available", nil))

	slot, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if slot.ID != id || slot.RoomID != roomID || slot.Status != StatusAvailable {
		t.Fatalf("unexpected slot: %#v", slot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM slots WHERE id").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols))

	_, err = store.Get(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSetStatusDisables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()
	actor := uuid.New()

	mock.ExpectQuery("UPDATE slots").
		WithArgs(id, "disabled", "maintenance", actor, pgxmock.AnyArg()).
		WillReturnRows(slotRow(id, roomID, "disabled", nil))

	slot, err := store.SetStatus(context.Background(), id, StatusDisabled,
		TransitionMeta{Actor: actor, Reason: "maintenance"}, StatusBooked)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if slot.Status != StatusDisabled {
		t.Fatalf("expected disabled, got %s", slot.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreSetStatusInvalidPreState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()

	// Conditional update matches nothing, then the store reloads the slot
	// to report the real pre-state.
	mock.ExpectQuery("UPDATE slots").WillReturnRows(pgxmock.NewRows(slotCols))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id").WithArgs(id).
		WillReturnRows(slotRow(id, roomID, "disabled", nil))

	_, err = store.SetStatus(context.Background(), id, StatusBooked, TransitionMeta{}, StatusAvailable)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStoreSetStatusRejectsIllegalPair(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)

	// disabled -> booked is never legal; no SQL should be issued.
	_, err = store.SetStatus(context.Background(), uuid.New(), StatusBooked, TransitionMeta{}, StatusDisabled)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreBookDisabledSlotFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()
	appointmentID := uuid.New()

	mock.ExpectQuery("UPDATE slots").WillReturnRows(pgxmock.NewRows(slotCols))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id").WithArgs(id).
		WillReturnRows(slotRow(id, roomID, "disabled", nil))

	_, err = store.Book(context.Background(), id, appointmentID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStoreAssignQueueNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()
	appointmentID := uuid.New()

	mock.ExpectQuery("UPDATE slots").
		WithArgs(id, "001", "booked").
		WillReturnRows(slotRow(id, roomID, "booked", &appointmentID))

	if _, err := store.AssignQueueNumber(context.Background(), id, "001"); err != nil {
		t.Fatalf("assign queue number: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreAssignQueueNumberTwice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	id := uuid.New()
	roomID := uuid.New()
	appointmentID := uuid.New()
	number := "007"

	mock.ExpectQuery("UPDATE slots").WillReturnRows(pgxmock.NewRows(slotCols))
	now := time.Now().UTC()
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM slots WHERE id").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(
			id, roomID, nil, day, day.Add(9*time.Hour), day.Add(10*time.Hour), "morning",
			[]uuid.UUID{}, []uuid.UUID{}, "booked", &appointmentID, &number,
			now, now,
		))

	_, err = store.AssignQueueNumber(context.Background(), id, "008")
	if !errors.Is(err, ErrQueueNumberAssigned) {
		t.Fatalf("expected ErrQueueNumberAssigned, got %v", err)
	}
}

func TestStoreFind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)
	roomID := uuid.New()
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(slotCols).
		AddRow(uuid.New(), roomID, nil, day, day.Add(9*time.Hour), day.Add(10*time.Hour), "morning",
			[]uuid.UUID{}, []uuid.UUID{}, "available", nil, nil, now, now).
		AddRow(uuid.New(), roomID, nil, day, day.Add(10*time.Hour), day.Add(11*time.Hour), "morning",
			[]uuid.UUID{}, []uuid.UUID{}, "booked", nil, nil, now, now)
	mock.ExpectQuery("SELECT .* FROM slots WHERE day").WillReturnRows(rows)

	found, err := store.Find(context.Background(), Criteria{Date: &day, RoomID: &roomID})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(found))
	}
}

func TestStoreFindRejectsMalformedCriteria(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStoreWithQuerier(mock)

	_, err = store.Find(context.Background(), Criteria{})
	if !errors.Is(err, ErrMalformedCriteria) {
		t.Fatalf("expected ErrMalformedCriteria, got %v", err)
	}
}
