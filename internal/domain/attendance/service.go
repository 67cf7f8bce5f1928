package attendance

import (
	"context"
	"time"
)

// Service defines business logic for attendance operations
type Service interface {
	// ClockIn opens a session for the employee on the timestamp's date
	ClockIn(ctx context.Context, req ClockInRequest) (Record, error)

	// ClockOut closes the employee's open session and classifies the day
	ClockOut(ctx context.Context, req ClockOutRequest) (Record, error)

	// MarkAbsent records an absence for a date that has no record yet
	MarkAbsent(ctx context.Context, req MarkAbsentRequest) (Record, error)

	// OverrideRecord merges an administrative patch into a record without
	// recomputing status or hours
	OverrideRecord(ctx context.Context, req OverrideRecordRequest) (Record, error)

	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	CurrentSession(ctx context.Context, employeeID string) (Session, error)

	// CloseStaleSessions closes open sessions dated before the given day
	CloseStaleSessions(ctx context.Context, before time.Time) (int, error)
}
