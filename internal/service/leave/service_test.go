package leave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/validator"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc     *LeaveServiceImpl
	hub     *sse.Hub
	now     time.Time
	backend *memory.Backend
	store   *snapshot.Store[leave.State]
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()

	defaults := leave.DefaultSettings()
	backend := memory.NewBackend()
	store := snapshot.New(backend, "leave", func() leave.State {
		return leave.NewState(defaults.Policies)
	})

	f := &fixture{
		now:     time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		hub:     sse.NewHub(),
		backend: backend,
		store:   store,
	}

	n := 0
	svc, err := NewLeaveService(context.Background(), store, Options{
		Defaults:      defaults,
		EnforcePolicy: enforce,
		Events:        f.hub,
		Now: func() time.Time {
			// each call moves a minute forward so submissions are ordered
			f.now = f.now.Add(time.Minute)
			return f.now
		},
		NewID: func() string {
			n++
			return fmt.Sprintf("lr-%03d", n)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func vacation(employeeID, start, end string) leave.SubmitRequestRequest {
	return leave.SubmitRequestRequest{
		EmployeeID:   employeeID,
		EmployeeName: "Test Employee",
		Type:         string(leave.TypeVacation),
		StartDate:    start,
		EndDate:      end,
		Reason:       "holiday",
	}
}

func review(id string) leave.ReviewRequestRequest {
	return leave.ReviewRequestRequest{ID: id, ReviewedBy: "mgr_1", Comments: "ok"}
}

// ===== DAY COUNT =====

func TestCountDays(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2025-01-22", "2025-01-22", 1},
		{"2025-01-22", "2025-01-24", 3},
		{"2025-01-30", "2025-02-02", 4},
		{"2024-02-28", "2024-03-01", 3},
	}

	for _, tt := range tests {
		t.Run(tt.start+"_"+tt.end, func(t *testing.T) {
			start, _ := time.Parse(validator.DateLayout, tt.start)
			end, _ := time.Parse(validator.DateLayout, tt.end)
			assert.Equal(t, tt.want, leave.CountDays(start, end))
		})
	}
}

// ===== SUBMIT =====

func TestLeaveService_SubmitRequest_Success(t *testing.T) {
	f := newFixture(t, true)

	req, err := f.svc.SubmitRequest(context.Background(), vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)

	assert.Equal(t, "lr-001", req.ID)
	assert.Equal(t, 3, req.Days)
	assert.Equal(t, leave.RequestStatusPending, req.Status)
	assert.Nil(t, req.ReviewedBy)
	assert.Nil(t, req.ReviewedAt)
	assert.False(t, req.SubmittedAt.IsZero())
}

func TestLeaveService_SubmitRequest_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-24", "2025-01-22"))
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.ToMap(), "end_date")

	bad := vacation("emp_1", "2025-01-22", "2025-01-22")
	bad.Type = "sabbatical"
	_, err = f.svc.SubmitRequest(ctx, bad)
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.ToMap(), "type")
}

func TestLeaveService_SubmitRequest_Policy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	// vacation allows at most 15 days
	_, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-03-01", "2025-03-16"))
	assert.ErrorIs(t, err, leave.ErrExceedsMaxDays)

	sick := leave.SubmitRequestRequest{
		EmployeeID:   "emp_1",
		EmployeeName: "Test Employee",
		Type:         string(leave.TypeSick),
		StartDate:    "2025-03-01",
		EndDate:      "2025-03-02",
		Reason:       "flu",
	}
	_, err = f.svc.SubmitRequest(ctx, sick)
	assert.ErrorIs(t, err, leave.ErrDocumentationRequired)

	sick.AttachmentURL = ptr("https://files.example.com/note.pdf")
	_, err = f.svc.SubmitRequest(ctx, sick)
	assert.NoError(t, err)

	requests, err := f.svc.ListRequests(ctx, leave.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestLeaveService_SubmitRequest_PolicyDisabled(t *testing.T) {
	f := newFixture(t, false)

	req, err := f.svc.SubmitRequest(context.Background(), vacation("emp_1", "2025-03-01", "2025-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 31, req.Days)
}

// ===== REVIEW =====

func TestLeaveService_ApproveRequest_DeductsBalance(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_2", Total: 15})
	require.NoError(t, err)

	first, err := f.svc.SubmitRequest(ctx, vacation("emp_2", "2025-01-06", "2025-01-10"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(first.ID))
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, "emp_2")
	require.NoError(t, err)
	assert.Equal(t, leave.Allotment{Total: 15, Used: 5, Remaining: 10}, balance.Allotment)

	second, err := f.svc.SubmitRequest(ctx, vacation("emp_2", "2025-02-03", "2025-02-07"))
	require.NoError(t, err)
	approved, err := f.svc.ApproveRequest(ctx, review(second.ID))
	require.NoError(t, err)

	assert.Equal(t, leave.RequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "mgr_1", *approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, "ok", approved.Comments)

	balance, err = f.svc.GetBalance(ctx, "emp_2")
	require.NoError(t, err)
	assert.Equal(t, leave.Allotment{Total: 15, Used: 10, Remaining: 5}, balance.Allotment)
	assert.Equal(t, leave.Allotment{Total: 15, Used: 10, Remaining: 5}, balance.Vacation)
	assert.Equal(t, leave.NewAllotment(10), balance.Sick)
}

func TestLeaveService_ApproveRequest_EmergencyUsesAggregateOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, leave.SubmitRequestRequest{
		EmployeeID:   "emp_3",
		EmployeeName: "Test Employee",
		Type:         string(leave.TypeEmergency),
		StartDate:    "2025-01-20",
		EndDate:      "2025-01-21",
	})
	require.NoError(t, err)

	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, "emp_3")
	require.NoError(t, err)
	assert.Equal(t, leave.Allotment{Total: 30, Used: 2, Remaining: 28}, balance.Allotment)
	assert.Equal(t, leave.NewAllotment(10), balance.Sick)
	assert.Equal(t, leave.NewAllotment(15), balance.Vacation)
	assert.Equal(t, leave.NewAllotment(5), balance.Personal)
}

func TestLeaveService_ApproveRequest_RemainingMayGoNegative(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_1", Type: "personal", Total: 1})
	require.NoError(t, err)

	req, err := f.svc.SubmitRequest(ctx, leave.SubmitRequestRequest{
		EmployeeID:   "emp_1",
		EmployeeName: "Test Employee",
		Type:         string(leave.TypePersonal),
		StartDate:    "2025-01-20",
		EndDate:      "2025-01-22",
	})
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, -2, balance.Personal.Remaining)
}

func TestLeaveService_RejectRequest_KeepsBalance(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)

	rejected, err := f.svc.RejectRequest(ctx, review(req.ID))
	require.NoError(t, err)
	assert.Equal(t, leave.RequestStatusRejected, rejected.Status)

	balance, err := f.svc.GetBalance(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Used)
	assert.Equal(t, leave.DefaultSettings().NewBalance("emp_1"), balance)
}

func TestLeaveService_Review_Guarded(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.NoError(t, err)

	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	assert.ErrorIs(t, err, leave.ErrLeaveRequestAlreadyProcessed)
	_, err = f.svc.RejectRequest(ctx, review(req.ID))
	assert.ErrorIs(t, err, leave.ErrLeaveRequestAlreadyProcessed)

	balance, err := f.svc.GetBalance(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance.Used)

	stored, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestStatusApproved, stored.Status)
}

func TestLeaveService_Review_NotFound(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.ApproveRequest(context.Background(), review("missing"))
	assert.ErrorIs(t, err, leave.ErrLeaveRequestNotFound)

	_, err = f.svc.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, leave.ErrLeaveRequestNotFound)
}

// ===== LIST =====

func TestLeaveService_ListRequests(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)
	second, err := f.svc.SubmitRequest(ctx, vacation("emp_2", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(second.ID))
	require.NoError(t, err)

	all, err := f.svc.ListRequests(ctx, leave.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	pending, err := f.svc.ListRequests(ctx, leave.RequestFilter{Status: ptr("pending")})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	none, err := f.svc.ListRequests(ctx, leave.RequestFilter{EmployeeID: ptr("emp_9")})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// ===== BALANCE / POLICY =====

func TestLeaveService_GetBalance_DefaultNotPersisted(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	balance, err := f.svc.GetBalance(ctx, "emp_new")
	require.NoError(t, err)
	assert.Equal(t, 30, balance.Total)
	assert.Equal(t, 30, balance.Remaining)

	_, err = f.backend.Read(ctx, "leave")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestLeaveService_UpdateBalance(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.NoError(t, err)

	balance, err := f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_1", Type: "vacation", Total: 20})
	require.NoError(t, err)
	assert.Equal(t, leave.Allotment{Total: 20, Used: 3, Remaining: 17}, balance.Vacation)
	assert.Equal(t, leave.Allotment{Total: 30, Used: 3, Remaining: 27}, balance.Allotment)

	_, err = f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_1", Type: "emergency", Total: 5})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestLeaveService_UpdatePolicy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	policy, err := f.svc.UpdatePolicy(ctx, leave.UpdatePolicyRequest{Type: "vacation", MaxDays: ptr(20)})
	require.NoError(t, err)
	assert.Equal(t, leave.Policy{MaxDays: 20}, policy)

	_, err = f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-03-01", "2025-03-18"))
	assert.NoError(t, err)

	policy, err = f.svc.UpdatePolicy(ctx, leave.UpdatePolicyRequest{Type: "personal", RequiresDocumentation: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, leave.Policy{MaxDays: 5, RequiresDocumentation: true}, policy)

	policies, err := f.svc.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 4)
	assert.Equal(t, 20, policies[leave.TypeVacation].MaxDays)
}

// ===== PERSISTENCE =====

func TestLeaveService_PersistsAcrossRestart(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.NoError(t, err)
	_, err = f.svc.UpdatePolicy(ctx, leave.UpdatePolicyRequest{Type: "vacation", MaxDays: ptr(30)})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequest(ctx, leave.SubmitRequestRequest{
		EmployeeID:    "emp_2",
		EmployeeName:  "Sari",
		Type:          string(leave.TypeSick),
		StartDate:     "2025-01-13",
		EndDate:       "2025-01-14",
		Reason:        "flu",
		AttachmentURL: ptr("https://files.example.com/note.pdf"),
	})
	require.NoError(t, err)
	_, err = f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_3", Type: "personal", Total: 7})
	require.NoError(t, err)

	reloaded, err := NewLeaveService(ctx, f.store, Options{Defaults: leave.DefaultSettings()})
	require.NoError(t, err)

	assert.Equal(t, f.svc.state, reloaded.state)

	stored, err := reloaded.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestStatusApproved, stored.Status)

	balance, err := reloaded.GetBalance(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance.Vacation.Used)

	policies, err := reloaded.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, policies[leave.TypeVacation].MaxDays)
	assert.Equal(t, 10, policies[leave.TypeSick].MaxDays)
}

func TestLeaveService_FailedSaveKeepsState(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, vacation("emp_1", "2025-01-22", "2025-01-24"))
	require.NoError(t, err)

	f.backend.FailWrites(errors.New("connection reset"))
	_, err = f.svc.ApproveRequest(ctx, review(req.ID))
	require.Error(t, err)

	stored, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestStatusPending, stored.Status)

	balance, err := f.svc.GetBalance(ctx, "emp_1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Used)
}

func TestLeaveService_PublishesEvents(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	events, cleanup := f.hub.Subscribe("emp_2")
	defer cleanup()
	others, cleanupOthers := f.hub.Subscribe("emp_9")
	defer cleanupOthers()

	first, err := f.svc.SubmitRequest(ctx, vacation("emp_2", "2025-01-20", "2025-01-21"))
	require.NoError(t, err)
	second, err := f.svc.SubmitRequest(ctx, vacation("emp_2", "2025-02-03", "2025-02-03"))
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, review(first.ID))
	require.NoError(t, err)
	_, err = f.svc.RejectRequest(ctx, review(second.ID))
	require.NoError(t, err)
	_, err = f.svc.RejectRequest(ctx, review(second.ID))
	require.ErrorIs(t, err, leave.ErrLeaveRequestAlreadyProcessed)
	_, err = f.svc.UpdateBalance(ctx, leave.UpdateBalanceRequest{EmployeeID: "emp_2", Total: 40})
	require.NoError(t, err)

	want := []string{EventSubmitted, EventSubmitted, EventApproved, EventRejected, EventBalanceUpdated}
	for _, name := range want {
		select {
		case event := <-events:
			assert.Equal(t, name, event.Event)
			assert.Equal(t, "emp_2", event.EmployeeID)
		default:
			t.Fatalf("missing %s event", name)
		}
	}
	assert.Empty(t, events)
	assert.Empty(t, others)
}

func TestLeaveService_PolicyUpdatePublishedToAllEmployees(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	all, cleanup := f.hub.Subscribe(sse.AllEmployees)
	defer cleanup()

	_, err := f.svc.UpdatePolicy(ctx, leave.UpdatePolicyRequest{Type: "personal", MaxDays: ptr(2)})
	require.NoError(t, err)
	_, err = f.svc.UpdatePolicy(ctx, leave.UpdatePolicyRequest{Type: "sabbatical", MaxDays: ptr(2)})
	require.Error(t, err)

	require.Len(t, all, 1)
	event := <-all
	assert.Equal(t, EventPolicyUpdated, event.Event)
	assert.Empty(t, event.EmployeeID)
	assert.Equal(t, PolicyUpdate{Type: leave.TypePersonal, Policy: leave.Policy{MaxDays: 2}}, event.Data)
}
