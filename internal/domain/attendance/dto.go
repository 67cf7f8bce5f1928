package attendance

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

type ClockInRequest struct {
	EmployeeID string     `json:"employee_id"`
	Timestamp  *time.Time `json:"timestamp,omitempty"` // defaults to now
}

func (r *ClockInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	return errs.Err()
}

type ClockOutRequest struct {
	EmployeeID string     `json:"employee_id"`
	Timestamp  *time.Time `json:"timestamp,omitempty"` // defaults to now
}

func (r *ClockOutRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	return errs.Err()
}

type MarkAbsentRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"` // YYYY-MM-DD
	Notes      string `json:"notes,omitempty"`
}

func (r *MarkAbsentRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs.Add("date", "date must be in YYYY-MM-DD format")
	}

	return errs.Err()
}

// OverrideRecordRequest is the raw administrative override. Non-nil fields
// replace the stored values as-is; nothing is recomputed.
type OverrideRecordRequest struct {
	ID            string     `json:"-"`
	Date          *string    `json:"date,omitempty"`
	ClockIn       *time.Time `json:"clock_in,omitempty"`
	ClockOut      *time.Time `json:"clock_out,omitempty"`
	ClearClockOut bool       `json:"clear_clock_out,omitempty"`
	Status        *string    `json:"status,omitempty"`
	HoursWorked   *float64   `json:"hours_worked,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (r *OverrideRecordRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs.Add("id", "id is required")
	}

	if r.ClockOut != nil && r.ClearClockOut {
		errs.Add("clock_out", "clock_out and clear_clock_out are mutually exclusive")
	}

	return errs.Err()
}

// Apply merges the override into rec.
func (r *OverrideRecordRequest) Apply(rec Record) Record {
	if r.Date != nil {
		rec.Date = *r.Date
	}
	if r.ClockIn != nil {
		in := *r.ClockIn
		rec.ClockIn = &in
	}
	if r.ClockOut != nil {
		out := *r.ClockOut
		rec.ClockOut = &out
	}
	if r.ClearClockOut {
		rec.ClockOut = nil
	}
	if r.Status != nil {
		rec.Status = Status(*r.Status)
	}
	if r.HoursWorked != nil {
		rec.HoursWorked = *r.HoursWorked
	}
	if r.Notes != nil {
		rec.Notes = *r.Notes
	}
	return rec
}

// ValidateRecord checks a record against the field rules enforced by the
// tracked operations. Used by the strict override mode.
func ValidateRecord(rec Record) error {
	var errs validator.ValidationErrors

	if _, valid := validator.IsValidDate(rec.Date); !valid {
		errs.Add("date", "date must be in YYYY-MM-DD format")
	}

	if !validator.IsInSlice(string(rec.Status), Statuses) {
		errs.Add("status", "status must be one of: "+strings.Join(Statuses, ", "))
	}

	if rec.HoursWorked < 0 {
		errs.Add("hours_worked", "hours_worked must not be negative")
	}

	if rec.ClockOut != nil {
		if rec.ClockIn == nil {
			errs.Add("clock_out", "clock_out requires clock_in")
		} else if rec.ClockOut.Before(*rec.ClockIn) {
			errs.Add("clock_out", "clock_out must not be before clock_in")
		}
	}

	return errs.Err()
}

type RecordFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Date       *string `json:"date,omitempty"`       // YYYY-MM-DD
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status     *string `json:"status,omitempty"`

	SortOrder string `json:"sort_order"` // asc, desc
}

func (f *RecordFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !validator.IsInSlice(*f.Status, Statuses) {
		errs.Add("status", "status must be one of: "+strings.Join(Statuses, ", "))
	}

	for field, value := range map[string]*string{
		"date":       f.Date,
		"start_date": f.StartDate,
		"end_date":   f.EndDate,
	} {
		if value == nil || *value == "" {
			continue
		}
		if _, valid := validator.IsValidDate(*value); !valid {
			errs.Add(field, field+" must be in YYYY-MM-DD format")
		}
	}

	if f.SortOrder != "" {
		if !validator.IsInSlice(strings.ToLower(f.SortOrder), []string{"asc", "desc"}) {
			errs.Add("sort_order", "sort_order must be one of: asc, desc")
		}
	} else {
		f.SortOrder = "desc" // newest first
	}

	return errs.Err()
}

// Matches reports whether rec satisfies every set filter field.
func (f RecordFilter) Matches(rec Record) bool {
	if f.EmployeeID != nil && *f.EmployeeID != "" && rec.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.Date != nil && *f.Date != "" && rec.Date != *f.Date {
		return false
	}
	// YYYY-MM-DD compares correctly as a string
	if f.StartDate != nil && *f.StartDate != "" && rec.Date < *f.StartDate {
		return false
	}
	if f.EndDate != nil && *f.EndDate != "" && rec.Date > *f.EndDate {
		return false
	}
	if f.Status != nil && *f.Status != "" && string(rec.Status) != *f.Status {
		return false
	}
	return true
}
