package leave

import (
	"context"
)

type Service interface {
	// Request
	SubmitRequest(ctx context.Context, req SubmitRequestRequest) (Request, error)
	ApproveRequest(ctx context.Context, req ReviewRequestRequest) (Request, error)
	RejectRequest(ctx context.Context, req ReviewRequestRequest) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	// Balance
	GetBalance(ctx context.Context, employeeID string) (Balance, error)
	UpdateBalance(ctx context.Context, req UpdateBalanceRequest) (Balance, error)
	// Policy
	ListPolicies(ctx context.Context) (map[Type]Policy, error)
	UpdatePolicy(ctx context.Context, req UpdatePolicyRequest) (Policy, error)
}
