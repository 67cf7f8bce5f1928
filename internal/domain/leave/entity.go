package leave

import (
	"time"
)

type Type string

const (
	TypeSick      Type = "sick"
	TypeVacation  Type = "vacation"
	TypePersonal  Type = "personal"
	TypeEmergency Type = "emergency"
)

// Types lists every leave type a request may carry.
var Types = []string{
	string(TypeSick),
	string(TypeVacation),
	string(TypePersonal),
	string(TypeEmergency),
}

// BalanceTypes lists the leave types that have their own sub-balance.
var BalanceTypes = []string{
	string(TypeSick),
	string(TypeVacation),
	string(TypePersonal),
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Request is a leave request. Approved and rejected are terminal.
type Request struct {
	ID            string        `json:"id"`
	EmployeeID    string        `json:"employee_id"`
	EmployeeName  string        `json:"employee_name"` // snapshot at submission
	Type          Type          `json:"type"`
	StartDate     string        `json:"start_date"` // YYYY-MM-DD, inclusive
	EndDate       string        `json:"end_date"`   // YYYY-MM-DD, inclusive
	Days          int           `json:"days"`
	Reason        string        `json:"reason"`
	AttachmentURL *string       `json:"attachment_url,omitempty"`
	Status        RequestStatus `json:"status"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	ReviewedBy    *string       `json:"reviewed_by"`
	ReviewedAt    *time.Time    `json:"reviewed_at"`
	Comments      string        `json:"comments"`
}

// Allotment holds one balance scope. Remaining always equals Total - Used.
type Allotment struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// NewAllotment returns an unused allotment of total days.
func NewAllotment(total int) Allotment {
	return Allotment{Total: total, Remaining: total}
}

// Deduct consumes days. Remaining may go negative.
func (a *Allotment) Deduct(days int) {
	a.Used += days
	a.Remaining = a.Total - a.Used
}

// SetTotal replaces the entitlement, keeping Used.
func (a *Allotment) SetTotal(total int) {
	a.Total = total
	a.Remaining = a.Total - a.Used
}

// Balance is an employee's leave entitlement: an aggregate scope plus one
// scope per balance type.
type Balance struct {
	EmployeeID string `json:"employee_id"`
	Allotment
	Sick     Allotment `json:"sick"`
	Vacation Allotment `json:"vacation"`
	Personal Allotment `json:"personal"`
}

// ForType returns the sub-balance for t, or nil when t has none.
func (b *Balance) ForType(t Type) *Allotment {
	switch t {
	case TypeSick:
		return &b.Sick
	case TypeVacation:
		return &b.Vacation
	case TypePersonal:
		return &b.Personal
	}
	return nil
}

// Policy is the per-type rule set applied at submission.
type Policy struct {
	MaxDays               int  `json:"max_days"`
	RequiresDocumentation bool `json:"requires_documentation"`
}

// State is the full persisted leave snapshot.
type State struct {
	Requests []Request          `json:"requests"`
	Balances map[string]Balance `json:"balances"`
	Policies map[Type]Policy    `json:"policies"`
}

// NewState returns an empty snapshot seeded with policies.
func NewState(policies map[Type]Policy) State {
	s := State{
		Requests: make([]Request, 0),
		Balances: make(map[string]Balance),
		Policies: make(map[Type]Policy, len(policies)),
	}
	for t, p := range policies {
		s.Policies[t] = p
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s State) Clone() State {
	out := State{
		Requests: make([]Request, len(s.Requests)),
		Balances: make(map[string]Balance, len(s.Balances)),
		Policies: make(map[Type]Policy, len(s.Policies)),
	}
	for i, req := range s.Requests {
		out.Requests[i] = req.Clone()
	}
	for k, v := range s.Balances {
		out.Balances[k] = v
	}
	for k, v := range s.Policies {
		out.Policies[k] = v
	}
	return out
}

// Clone returns a copy that shares no pointers with r.
func (r Request) Clone() Request {
	if r.AttachmentURL != nil {
		url := *r.AttachmentURL
		r.AttachmentURL = &url
	}
	if r.ReviewedBy != nil {
		by := *r.ReviewedBy
		r.ReviewedBy = &by
	}
	if r.ReviewedAt != nil {
		at := *r.ReviewedAt
		r.ReviewedAt = &at
	}
	return r
}

// Defaults seeds new ledgers and new employee balances.
type Defaults struct {
	Policies   map[Type]Policy
	Allotments map[Type]int
}

// DefaultSettings returns the built-in policies and yearly allotments.
func DefaultSettings() Defaults {
	return Defaults{
		Policies: map[Type]Policy{
			TypeSick:      {MaxDays: 10, RequiresDocumentation: true},
			TypeVacation:  {MaxDays: 15},
			TypePersonal:  {MaxDays: 5},
			TypeEmergency: {MaxDays: 3},
		},
		Allotments: map[Type]int{
			TypeSick:     10,
			TypeVacation: 15,
			TypePersonal: 5,
		},
	}
}

// NewBalance builds an unused balance from the allotments. The aggregate
// total is the sum of the type totals.
func (d Defaults) NewBalance(employeeID string) Balance {
	b := Balance{EmployeeID: employeeID}
	total := 0
	for _, name := range BalanceTypes {
		t := Type(name)
		days := d.Allotments[t]
		*b.ForType(t) = NewAllotment(days)
		total += days
	}
	b.Allotment = NewAllotment(total)
	return b
}
