package attendance

import (
	"context"
)

// Repository persists the attendance snapshot. Save replaces the whole
// stored state; the last writer wins.
type Repository interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
