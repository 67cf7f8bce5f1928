package leave

import (
	"context"
)

// Repository persists the leave snapshot (requests, balances and policies)
// as a single unit. Save replaces the whole stored state.
type Repository interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
