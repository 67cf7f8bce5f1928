package attendance

import (
	"time"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half-day"
	StatusAbsent  Status = "absent"
)

// Statuses lists every valid attendance status.
var Statuses = []string{
	string(StatusPresent),
	string(StatusLate),
	string(StatusHalfDay),
	string(StatusAbsent),
}

// Record is one attendance entry for an employee on a calendar date.
// A record with a nil ClockOut is an open session.
type Record struct {
	ID          string     `json:"id"`
	EmployeeID  string     `json:"employee_id"`
	Date        string     `json:"date"` // YYYY-MM-DD
	ClockIn     *time.Time `json:"clock_in"`
	ClockOut    *time.Time `json:"clock_out"`
	Status      Status     `json:"status"`
	HoursWorked float64    `json:"hours_worked"`
	Notes       string     `json:"notes"`
}

// IsOpen reports whether the record is an open session.
func (r Record) IsOpen() bool {
	return r.ClockIn != nil && r.ClockOut == nil
}

// Session marks the open record of an employee.
type Session struct {
	RecordID string    `json:"record_id"`
	ClockIn  time.Time `json:"clock_in"`
	Date     string    `json:"date"`
}

// State is the full persisted attendance snapshot.
type State struct {
	Records  []Record           `json:"records"`
	Sessions map[string]Session `json:"sessions"`
}

// NewState returns an empty snapshot.
func NewState() State {
	return State{
		Records:  make([]Record, 0),
		Sessions: make(map[string]Session),
	}
}

// Clone returns a deep copy of the snapshot.
func (s State) Clone() State {
	out := State{
		Records:  make([]Record, len(s.Records)),
		Sessions: make(map[string]Session, len(s.Sessions)),
	}
	for i, rec := range s.Records {
		out.Records[i] = rec.Clone()
	}
	for k, v := range s.Sessions {
		out.Sessions[k] = v
	}
	return out
}

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	if r.ClockIn != nil {
		in := *r.ClockIn
		r.ClockIn = &in
	}
	if r.ClockOut != nil {
		out := *r.ClockOut
		r.ClockOut = &out
	}
	return r
}
