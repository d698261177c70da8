package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the availability of a calendar day.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusReserved    Status = "reserved"
)

// DayID identifies a day across the whole view. The server may send it as a number or a string.
type DayID string

// UnmarshalJSON accepts both `1` and `"1"`.
func (id *DayID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = DayID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("day id: %w", err)
	}
	*id = DayID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers so the server gets back what it sent.
func (id DayID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Day is a bookable calendar unit.
type Day struct {
	ID     DayID
	Date   string
	Status Status
	Holder string // set only when reserved by the current user
}

// Month groups days under a display label.
type Month struct {
	Label string
	Days  []Day
}

// CalendarView is the in-memory board state.
type CalendarView struct {
	Months []Month
}

// Validate checks the view invariants: unique day ids and holder implies reserved.
func (v CalendarView) Validate() error {
	seen := make(map[DayID]struct{})
	for mi, m := range v.Months {
		for di, d := range m.Days {
			if d.ID == "" {
				return fmt.Errorf("month[%d].day[%d]: empty id", mi, di)
			}
			if _, dup := seen[d.ID]; dup {
				return fmt.Errorf("month[%d].day[%d]: duplicate id %q", mi, di, d.ID)
			}
			seen[d.ID] = struct{}{}
			if d.Holder != "" && d.Status != StatusReserved {
				return fmt.Errorf("day %q: holder set with status %q", d.ID, d.Status)
			}
		}
	}
	return nil
}

// HasAvailable reports whether at least one day can be claimed.
func (v CalendarView) HasAvailable() bool {
	for _, m := range v.Months {
		for _, d := range m.Days {
			if d.Status == StatusAvailable {
				return true
			}
		}
	}
	return false
}

// Day returns the day with the given id.
func (v CalendarView) Day(id DayID) (Day, bool) {
	for _, m := range v.Months {
		for _, d := range m.Days {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Day{}, false
}

// ExpireAvailable flips every available day to unavailable in place and
// returns how many changed. Other statuses are left alone, so a second call is a no-op.
func (v *CalendarView) ExpireAvailable() int {
	n := 0
	for mi := range v.Months {
		days := v.Months[mi].Days
		for di := range days {
			if days[di].Status == StatusAvailable {
				days[di].Status = StatusUnavailable
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy safe to hand out to observers.
func (v CalendarView) Clone() CalendarView {
	out := CalendarView{Months: make([]Month, len(v.Months))}
	for i, m := range v.Months {
		out.Months[i] = Month{Label: m.Label, Days: append([]Day(nil), m.Days...)}
	}
	return out
}
