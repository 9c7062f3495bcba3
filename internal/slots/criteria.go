package slots

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedCriteria indicates a search filter that cannot be evaluated.
var ErrMalformedCriteria = errors.New("malformed slot criteria")

// Criteria filters slots by any combination of date, date range, shift,
// room, sub-room, staff, explicit ids and status.
type Criteria struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	Shift     string
	RoomID    *uuid.UUID
	SubRoomID *uuid.UUID
	DentistID *uuid.UUID
	NurseID   *uuid.UUID
	SlotIDs   []uuid.UUID
	Statuses  []Status
}

// IsZero reports whether no filter field is set.
func (c Criteria) IsZero() bool {
	return c.Date == nil && c.StartDate == nil && c.EndDate == nil &&
		c.Shift == "" && c.RoomID == nil && c.SubRoomID == nil &&
		c.DentistID == nil && c.NurseID == nil && len(c.SlotIDs) == 0 &&
		len(c.Statuses) == 0
}

// Validate rejects unusable filter combinations before any query runs.
func (c Criteria) Validate() error {
	if c.IsZero() {
		return fmt.Errorf("%w: no filter fields set", ErrMalformedCriteria)
	}
	if (c.StartDate == nil) != (c.EndDate == nil) {
		return fmt.Errorf("%w: date range requires both start and end", ErrMalformedCriteria)
	}
	if c.StartDate != nil && c.EndDate.Before(*c.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrMalformedCriteria)
	}
	if c.Date != nil && c.StartDate != nil {
		return fmt.Errorf("%w: single date and date range are exclusive", ErrMalformedCriteria)
	}
	return nil
}

// whereClause renders the criteria as SQL conditions with positional args.
func (c Criteria) whereClause() (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.Date != nil {
		add("day = $%d", *c.Date)
	}
	if c.StartDate != nil && c.EndDate != nil {
		add("day >= $%d", *c.StartDate)
		add("day <= $%d", *c.EndDate)
	}
	if c.Shift != "" {
		add("shift = $%d", c.Shift)
	}
	if c.RoomID != nil {
		add("room_id = $%d", *c.RoomID)
	}
	if c.SubRoomID != nil {
		add("subroom_id = $%d", *c.SubRoomID)
	}
	if c.DentistID != nil {
		add("$%d = ANY(dentist_ids)", *c.DentistID)
	}
	if c.NurseID != nil {
		add("$%d = ANY(nurse_ids)", *c.NurseID)
	}
	if len(c.SlotIDs) > 0 {
		add("id = ANY($%d)", c.SlotIDs)
	}
	if len(c.Statuses) > 0 {
		statuses := make([]string, 0, len(c.Statuses))
		for _, s := range c.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
