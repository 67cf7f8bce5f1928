package leave

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/sse"
	"github.com/google/uuid"
)

// Change feed event names.
const (
	EventSubmitted      = "leave.submitted"
	EventApproved       = "leave.approved"
	EventRejected       = "leave.rejected"
	EventBalanceUpdated = "leave.balance_updated"
	EventPolicyUpdated  = "leave.policy_updated"
)

// PolicyUpdate is the payload of EventPolicyUpdated.
type PolicyUpdate struct {
	Type leave.Type `json:"type"`
	leave.Policy
}

type Options struct {
	// Defaults seeds missing policies and new employee balances.
	Defaults leave.Defaults
	// EnforcePolicy rejects submissions that break the type's policy.
	EnforcePolicy bool
	// Events receives a change event after every committed mutation.
	Events sse.Publisher

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

type LeaveServiceImpl struct {
	mu    sync.Mutex
	repo  leave.Repository
	state leave.State

	defaults leave.Defaults
	enforce  bool
	now      func() time.Time
	newID    func() string
	events   sse.Publisher
	logger   *slog.Logger

	// queued by emit during a mutation, guarded by mu
	pending []sse.Event
}

// NewLeaveService loads the persisted ledger. Policies missing from the
// snapshot are filled in from opts.Defaults.
func NewLeaveService(ctx context.Context, repo leave.Repository, opts Options) (*LeaveServiceImpl, error) {
	state, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leave state: %w", err)
	}
	if state.Balances == nil {
		state.Balances = make(map[string]leave.Balance)
	}
	if state.Policies == nil {
		state.Policies = make(map[leave.Type]leave.Policy)
	}
	for t, p := range opts.Defaults.Policies {
		if _, ok := state.Policies[t]; !ok {
			state.Policies[t] = p
		}
	}

	l := &LeaveServiceImpl{
		repo:     repo,
		state:    state,
		defaults: opts.Defaults,
		enforce:  opts.EnforcePolicy,
		now:      opts.Now,
		newID:    opts.NewID,
		events:   opts.Events,
		logger:   opts.Logger,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// mutate applies fn to a copy of the ledger, persists the copy and only
// then makes it current. Events emitted by fn go out after the commit,
// still under the lock.
func (l *LeaveServiceImpl) mutate(ctx context.Context, fn func(state *leave.State) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.pending = nil }()

	next := l.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}

	if err := l.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save leave state: %w", err)
	}
	l.state = next

	for _, event := range l.pending {
		l.events.Publish(event)
	}
	return nil
}

// emit queues a change event for the running mutation. An empty
// employeeID reaches only subscribers of every employee.
func (l *LeaveServiceImpl) emit(event, employeeID string, data interface{}) {
	if l.events == nil {
		return
	}
	l.pending = append(l.pending, sse.Event{EmployeeID: employeeID, Event: event, Data: data})
}

func findRequest(state *leave.State, id string) int {
	for i, req := range state.Requests {
		if req.ID == id {
			return i
		}
	}
	return -1
}

// checkPolicy applies the type's policy to a submission of days.
func checkPolicy(p leave.Policy, days int, attachmentURL *string) error {
	if p.MaxDays > 0 && days > p.MaxDays {
		return fmt.Errorf("%w: %d days requested, at most %d", leave.ErrExceedsMaxDays, days, p.MaxDays)
	}
	if p.RequiresDocumentation && (attachmentURL == nil || *attachmentURL == "") {
		return leave.ErrDocumentationRequired
	}
	return nil
}

// SubmitRequest implements leave.Service.
func (l *LeaveServiceImpl) SubmitRequest(ctx context.Context, req leave.SubmitRequestRequest) (leave.Request, error) {
	if err := req.Validate(); err != nil {
		return leave.Request{}, err
	}
	days := req.Days()

	var created leave.Request
	err := l.mutate(ctx, func(state *leave.State) error {
		leaveType := leave.Type(req.Type)
		if l.enforce {
			if p, ok := state.Policies[leaveType]; ok {
				if err := checkPolicy(p, days, req.AttachmentURL); err != nil {
					return err
				}
			}
		}

		created = leave.Request{
			ID:            l.newID(),
			EmployeeID:    req.EmployeeID,
			EmployeeName:  req.EmployeeName,
			Type:          leaveType,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			Days:          days,
			Reason:        req.Reason,
			AttachmentURL: req.AttachmentURL,
			Status:        leave.RequestStatusPending,
			SubmittedAt:   l.now().UTC(),
		}
		state.Requests = append(state.Requests, created.Clone())
		l.emit(EventSubmitted, created.EmployeeID, created.Clone())
		return nil
	})
	if err != nil {
		return leave.Request{}, err
	}

	l.logger.Info("Leave request submitted",
		"request_id", created.ID,
		"employee_id", created.EmployeeID,
		"type", created.Type,
		"days", created.Days,
	)
	return created, nil
}

// review moves a pending request to status. onApprove runs inside the same
// mutation when non-nil.
func (l *LeaveServiceImpl) review(ctx context.Context, req leave.ReviewRequestRequest, status leave.RequestStatus, onApprove func(state *leave.State, r leave.Request)) (leave.Request, error) {
	if err := req.Validate(); err != nil {
		return leave.Request{}, err
	}

	var reviewed leave.Request
	err := l.mutate(ctx, func(state *leave.State) error {
		idx := findRequest(state, req.ID)
		if idx < 0 {
			return leave.ErrLeaveRequestNotFound
		}

		r := &state.Requests[idx]
		if r.Status != leave.RequestStatusPending {
			return fmt.Errorf("%w: request is %s", leave.ErrLeaveRequestAlreadyProcessed, r.Status)
		}

		reviewedBy := req.ReviewedBy
		reviewedAt := l.now().UTC()
		r.Status = status
		r.ReviewedBy = &reviewedBy
		r.ReviewedAt = &reviewedAt
		r.Comments = req.Comments

		if onApprove != nil {
			onApprove(state, *r)
		}
		reviewed = r.Clone()
		event := EventRejected
		if status == leave.RequestStatusApproved {
			event = EventApproved
		}
		l.emit(event, reviewed.EmployeeID, r.Clone())
		return nil
	})
	if err != nil {
		return leave.Request{}, err
	}

	l.logger.Info("Leave request reviewed",
		"request_id", reviewed.ID,
		"employee_id", reviewed.EmployeeID,
		"status", reviewed.Status,
		"reviewed_by", req.ReviewedBy,
	)
	return reviewed, nil
}

// ApproveRequest implements leave.Service. The request's days are deducted
// from the aggregate balance and, for types that have one, the type's
// sub-balance. A missing balance starts from the default allotments.
func (l *LeaveServiceImpl) ApproveRequest(ctx context.Context, req leave.ReviewRequestRequest) (leave.Request, error) {
	return l.review(ctx, req, leave.RequestStatusApproved, func(state *leave.State, r leave.Request) {
		balance, ok := state.Balances[r.EmployeeID]
		if !ok {
			balance = l.defaults.NewBalance(r.EmployeeID)
		}

		balance.Allotment.Deduct(r.Days)
		if sub := balance.ForType(r.Type); sub != nil {
			sub.Deduct(r.Days)
		}
		state.Balances[r.EmployeeID] = balance
	})
}

// RejectRequest implements leave.Service. Balances are untouched.
func (l *LeaveServiceImpl) RejectRequest(ctx context.Context, req leave.ReviewRequestRequest) (leave.Request, error) {
	return l.review(ctx, req, leave.RequestStatusRejected, nil)
}

// GetRequest implements leave.Service.
func (l *LeaveServiceImpl) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := findRequest(&l.state, id)
	if idx < 0 {
		return leave.Request{}, leave.ErrLeaveRequestNotFound
	}
	return l.state.Requests[idx].Clone(), nil
}

// ListRequests implements leave.Service. Newest submissions come first.
func (l *LeaveServiceImpl) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.Request, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	requests := make([]leave.Request, 0)
	for _, r := range l.state.Requests {
		if filter.Matches(r) {
			requests = append(requests, r.Clone())
		}
	}
	l.mu.Unlock()

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].SubmittedAt.After(requests[j].SubmittedAt)
	})
	return requests, nil
}
