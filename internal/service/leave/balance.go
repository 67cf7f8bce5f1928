package leave

import (
	"context"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/leave"
)

// GetBalance implements leave.Service. An employee without a stored
// balance gets the default allotments; nothing is persisted.
func (l *LeaveServiceImpl) GetBalance(ctx context.Context, employeeID string) (leave.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if balance, ok := l.state.Balances[employeeID]; ok {
		return balance, nil
	}
	return l.defaults.NewBalance(employeeID), nil
}

// UpdateBalance implements leave.Service. Used days are kept and Remaining
// is recomputed against the new total.
func (l *LeaveServiceImpl) UpdateBalance(ctx context.Context, req leave.UpdateBalanceRequest) (leave.Balance, error) {
	if err := req.Validate(); err != nil {
		return leave.Balance{}, err
	}

	var updated leave.Balance
	err := l.mutate(ctx, func(state *leave.State) error {
		balance, ok := state.Balances[req.EmployeeID]
		if !ok {
			balance = l.defaults.NewBalance(req.EmployeeID)
		}

		if req.Type == "" {
			balance.Allotment.SetTotal(req.Total)
		} else {
			balance.ForType(leave.Type(req.Type)).SetTotal(req.Total)
		}

		state.Balances[req.EmployeeID] = balance
		updated = balance
		l.emit(EventBalanceUpdated, req.EmployeeID, balance)
		return nil
	})
	if err != nil {
		return leave.Balance{}, err
	}

	scope := req.Type
	if scope == "" {
		scope = "total"
	}
	l.logger.Info("Leave balance updated",
		"employee_id", req.EmployeeID,
		"scope", scope,
		"total", req.Total,
	)
	return updated, nil
}

// ListPolicies implements leave.Service.
func (l *LeaveServiceImpl) ListPolicies(ctx context.Context) (map[leave.Type]leave.Policy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policies := make(map[leave.Type]leave.Policy, len(l.state.Policies))
	for t, p := range l.state.Policies {
		policies[t] = p
	}
	return policies, nil
}

// UpdatePolicy implements leave.Service. Unset fields keep their value.
func (l *LeaveServiceImpl) UpdatePolicy(ctx context.Context, req leave.UpdatePolicyRequest) (leave.Policy, error) {
	if err := req.Validate(); err != nil {
		return leave.Policy{}, err
	}

	var updated leave.Policy
	err := l.mutate(ctx, func(state *leave.State) error {
		t := leave.Type(req.Type)
		updated = req.Apply(state.Policies[t])
		state.Policies[t] = updated
		l.emit(EventPolicyUpdated, "", PolicyUpdate{Type: t, Policy: updated})
		return nil
	})
	if err != nil {
		return leave.Policy{}, err
	}

	l.logger.Info("Leave policy updated",
		"type", req.Type,
		"max_days", updated.MaxDays,
		"requires_documentation", updated.RequiresDocumentation,
	)
	return updated, nil
}
