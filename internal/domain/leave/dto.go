package leave

import (
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/validator"
)

type SubmitRequestRequest struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	Type          string  `json:"type"`
	StartDate     string  `json:"start_date"` // YYYY-MM-DD
	EndDate       string  `json:"end_date"`   // YYYY-MM-DD
	Reason        string  `json:"reason"`
	AttachmentURL *string `json:"attachment_url,omitempty"`
}

func (r *SubmitRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	if validator.IsEmpty(r.EmployeeName) {
		errs.Add("employee_name", "employee_name is required")
	}

	if !validator.IsInSlice(r.Type, Types) {
		errs.Add("type", "type must be one of: "+strings.Join(Types, ", "))
	}

	start, startOK := validator.IsValidDate(r.StartDate)
	if !startOK {
		errs.Add("start_date", "start_date must be in YYYY-MM-DD format")
	}

	end, endOK := validator.IsValidDate(r.EndDate)
	if !endOK {
		errs.Add("end_date", "end_date must be in YYYY-MM-DD format")
	}

	if startOK && endOK && end.Before(start) {
		errs.Add("end_date", "end_date must not be before start_date")
	}

	return errs.Err()
}

// Days returns the inclusive day count of the request range. It assumes
// Validate passed.
func (r *SubmitRequestRequest) Days() int {
	start, _ := time.Parse(validator.DateLayout, r.StartDate)
	end, _ := time.Parse(validator.DateLayout, r.EndDate)
	return CountDays(start, end)
}

// CountDays returns floor((end - start) / 1 day) + 1.
func CountDays(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Hours()/24)) + 1
}

// ReviewRequestRequest carries an approve or reject decision.
type ReviewRequestRequest struct {
	ID         string `json:"-"`
	ReviewedBy string `json:"reviewed_by"`
	Comments   string `json:"comments,omitempty"`
}

func (r *ReviewRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs.Add("id", "id is required")
	}

	if validator.IsEmpty(r.ReviewedBy) {
		errs.Add("reviewed_by", "reviewed_by is required")
	}

	return errs.Err()
}

// UpdateBalanceRequest sets the entitlement of one scope. An empty Type
// targets the aggregate.
type UpdateBalanceRequest struct {
	EmployeeID string `json:"-"`
	Type       string `json:"type,omitempty"`
	Total      int    `json:"total"`
}

func (r *UpdateBalanceRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}

	if r.Type != "" && !validator.IsInSlice(r.Type, BalanceTypes) {
		errs.Add("type", "type must be empty or one of: "+strings.Join(BalanceTypes, ", "))
	}

	if r.Total < 0 {
		errs.Add("total", "total must not be negative")
	}

	return errs.Err()
}

type UpdatePolicyRequest struct {
	Type                  string `json:"-"`
	MaxDays               *int   `json:"max_days,omitempty"`
	RequiresDocumentation *bool  `json:"requires_documentation,omitempty"`
}

func (r *UpdatePolicyRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(r.Type, Types) {
		errs.Add("type", "type must be one of: "+strings.Join(Types, ", "))
	}

	if r.MaxDays != nil && *r.MaxDays < 0 {
		errs.Add("max_days", "max_days must not be negative")
	}

	return errs.Err()
}

// Apply merges the patch into p.
func (r *UpdatePolicyRequest) Apply(p Policy) Policy {
	if r.MaxDays != nil {
		p.MaxDays = *r.MaxDays
	}
	if r.RequiresDocumentation != nil {
		p.RequiresDocumentation = *r.RequiresDocumentation
	}
	return p
}

type RequestFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	Type       *string `json:"type,omitempty"`
}

func (f *RequestFilter) Validate() error {
	var errs validator.ValidationErrors

	statuses := []string{
		string(RequestStatusPending),
		string(RequestStatusApproved),
		string(RequestStatusRejected),
	}
	if f.Status != nil && !validator.IsInSlice(*f.Status, statuses) {
		errs.Add("status", "status must be one of: "+strings.Join(statuses, ", "))
	}

	if f.Type != nil && !validator.IsInSlice(*f.Type, Types) {
		errs.Add("type", "type must be one of: "+strings.Join(Types, ", "))
	}

	return errs.Err()
}

// Matches reports whether req satisfies every set filter field.
func (f RequestFilter) Matches(req Request) bool {
	if f.EmployeeID != nil && *f.EmployeeID != "" && req.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.Status != nil && *f.Status != "" && string(req.Status) != *f.Status {
		return false
	}
	if f.Type != nil && *f.Type != "" && string(req.Type) != *f.Type {
		return false
	}
	return true
}
