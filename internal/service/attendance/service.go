package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/validator"
	"github.com/google/uuid"
)

// StaleSessionNote is appended to records closed by CloseStaleSessions.
const StaleSessionNote = "auto-closed: missing clock-out"

// Change feed event names.
const (
	EventClockedIn    = "attendance.clocked_in"
	EventClockedOut   = "attendance.clocked_out"
	EventMarkedAbsent = "attendance.marked_absent"
	EventOverridden   = "attendance.overridden"
	EventAutoClosed   = "attendance.auto_closed"
)

// errNoChange aborts a mutation without saving.
var errNoChange = errors.New("no change")

type Options struct {
	// Location decides which calendar date a timestamp belongs to.
	Location *time.Location
	// StrictOverride validates records patched through OverrideRecord.
	StrictOverride bool

	// Events receives a change event after every committed mutation.
	Events sse.Publisher

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

type AttendanceServiceImpl struct {
	mu    sync.Mutex
	repo  attendance.Repository
	state attendance.State

	loc    *time.Location
	strict bool
	now    func() time.Time
	newID  func() string
	events sse.Publisher
	logger *slog.Logger

	// queued by emit during a mutation, guarded by mu
	pending []sse.Event
}

// NewAttendanceService loads the persisted snapshot and returns a tracker
// operating on it.
func NewAttendanceService(ctx context.Context, repo attendance.Repository, opts Options) (*AttendanceServiceImpl, error) {
	state, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance state: %w", err)
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]attendance.Session)
	}

	s := &AttendanceServiceImpl{
		repo:   repo,
		state:  state,
		loc:    opts.Location,
		strict: opts.StrictOverride,
		now:    opts.Now,
		newID:  opts.NewID,
		events: opts.Events,
		logger: opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// mutate applies fn to a copy of the state, persists the copy and only then
// makes it current. Events emitted by fn are published in commit order
// before the lock is released, and dropped when nothing is committed.
func (a *AttendanceServiceImpl) mutate(ctx context.Context, fn func(state *attendance.State) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() { a.pending = nil }()

	next := a.state.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}

	if err := a.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save attendance state: %w", err)
	}
	a.state = next

	for _, event := range a.pending {
		a.events.Publish(event)
	}
	return nil
}

// emit queues a change event for the running mutation. Callers hold mu.
func (a *AttendanceServiceImpl) emit(event string, rec attendance.Record) {
	if a.events == nil {
		return
	}
	a.pending = append(a.pending, sse.Event{EmployeeID: rec.EmployeeID, Event: event, Data: rec.Clone()})
}

func (a *AttendanceServiceImpl) timestamp(ts *time.Time) time.Time {
	if ts != nil {
		return ts.UTC()
	}
	return a.now().UTC()
}

func (a *AttendanceServiceImpl) dateOf(t time.Time) string {
	return t.In(a.loc).Format(validator.DateLayout)
}

func findOpen(state *attendance.State, employeeID, date string) int {
	for i, rec := range state.Records {
		if rec.EmployeeID == employeeID && rec.Date == date && rec.IsOpen() {
			return i
		}
	}
	return -1
}

func findByID(state *attendance.State, id string) int {
	for i, rec := range state.Records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// releaseSession drops the employee's marker if it points at rec.
func releaseSession(state *attendance.State, rec attendance.Record) {
	if sess, ok := state.Sessions[rec.EmployeeID]; ok && sess.RecordID == rec.ID {
		delete(state.Sessions, rec.EmployeeID)
	}
}

// ClockIn implements attendance.Service.
func (a *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockInRequest) (attendance.Record, error) {
	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}

	clockIn := a.timestamp(req.Timestamp)
	date := a.dateOf(clockIn)

	var created attendance.Record
	err := a.mutate(ctx, func(state *attendance.State) error {
		if findOpen(state, req.EmployeeID, date) >= 0 {
			return attendance.ErrAlreadyClockedIn
		}

		created = attendance.Record{
			ID:          a.newID(),
			EmployeeID:  req.EmployeeID,
			Date:        date,
			ClockIn:     &clockIn,
			Status:      attendance.StatusPresent, // provisional until clock-out
			HoursWorked: 0,
		}
		state.Records = append(state.Records, created.Clone())
		state.Sessions[req.EmployeeID] = attendance.Session{
			RecordID: created.ID,
			ClockIn:  clockIn,
			Date:     date,
		}
		a.emit(EventClockedIn, created)
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}

	a.logger.Info("Attendance clock-in recorded",
		"employee_id", created.EmployeeID,
		"record_id", created.ID,
		"date", created.Date,
	)
	return created, nil
}

// ClockOut implements attendance.Service.
func (a *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockOutRequest) (attendance.Record, error) {
	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}

	clockOut := a.timestamp(req.Timestamp)
	date := a.dateOf(clockOut)

	var closed attendance.Record
	err := a.mutate(ctx, func(state *attendance.State) error {
		idx := findOpen(state, req.EmployeeID, date)
		if idx < 0 {
			return attendance.ErrNoOpenSession
		}

		rec := &state.Records[idx]
		if clockOut.Before(*rec.ClockIn) {
			return attendance.ErrClockOutBeforeClockIn
		}

		hours := HoursBetween(*rec.ClockIn, clockOut)
		rec.ClockOut = &clockOut
		rec.HoursWorked = hours
		rec.Status = Classify(hours)

		releaseSession(state, *rec)
		closed = rec.Clone()
		a.emit(EventClockedOut, closed)
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}

	a.logger.Info("Attendance clock-out recorded",
		"employee_id", closed.EmployeeID,
		"record_id", closed.ID,
		"hours_worked", closed.HoursWorked,
		"status", closed.Status,
	)
	return closed, nil
}

// MarkAbsent implements attendance.Service.
func (a *AttendanceServiceImpl) MarkAbsent(ctx context.Context, req attendance.MarkAbsentRequest) (attendance.Record, error) {
	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}

	var created attendance.Record
	err := a.mutate(ctx, func(state *attendance.State) error {
		for _, rec := range state.Records {
			if rec.EmployeeID == req.EmployeeID && rec.Date == req.Date {
				return attendance.ErrRecordExists
			}
		}

		created = attendance.Record{
			ID:          a.newID(),
			EmployeeID:  req.EmployeeID,
			Date:        req.Date,
			Status:      attendance.StatusAbsent,
			HoursWorked: 0,
			Notes:       req.Notes,
		}
		state.Records = append(state.Records, created)
		a.emit(EventMarkedAbsent, created)
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}

	a.logger.Info("Attendance absence recorded",
		"employee_id", created.EmployeeID,
		"record_id", created.ID,
		"date", created.Date,
	)
	return created, nil
}

// OverrideRecord implements attendance.Service.
func (a *AttendanceServiceImpl) OverrideRecord(ctx context.Context, req attendance.OverrideRecordRequest) (attendance.Record, error) {
	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}

	var updated attendance.Record
	err := a.mutate(ctx, func(state *attendance.State) error {
		idx := findByID(state, req.ID)
		if idx < 0 {
			return attendance.ErrAttendanceNotFound
		}

		merged := req.Apply(state.Records[idx])
		if a.strict {
			if err := attendance.ValidateRecord(merged); err != nil {
				return err
			}
			// at most one open record per employee and date
			if merged.IsOpen() {
				for i, rec := range state.Records {
					if i != idx && rec.EmployeeID == merged.EmployeeID && rec.Date == merged.Date && rec.IsOpen() {
						return attendance.ErrAlreadyClockedIn
					}
				}
			}
		}
		state.Records[idx] = merged

		// keep the session marker in step with the open record
		if merged.IsOpen() {
			sess, ok := state.Sessions[merged.EmployeeID]
			if !ok || sess.RecordID == merged.ID {
				state.Sessions[merged.EmployeeID] = attendance.Session{
					RecordID: merged.ID,
					ClockIn:  *merged.ClockIn,
					Date:     merged.Date,
				}
			}
		} else {
			releaseSession(state, merged)
		}

		updated = merged.Clone()
		a.emit(EventOverridden, updated)
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}

	a.logger.Warn("Attendance record overridden",
		"record_id", updated.ID,
		"employee_id", updated.EmployeeID,
		"strict", a.strict,
	)
	return updated, nil
}

// GetRecord implements attendance.Service.
func (a *AttendanceServiceImpl) GetRecord(ctx context.Context, id string) (attendance.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := findByID(&a.state, id)
	if idx < 0 {
		return attendance.Record{}, attendance.ErrAttendanceNotFound
	}
	return a.state.Records[idx].Clone(), nil
}

// ListRecords implements attendance.Service.
func (a *AttendanceServiceImpl) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	records := make([]attendance.Record, 0)
	for _, rec := range a.state.Records {
		if filter.Matches(rec) {
			records = append(records, rec.Clone())
		}
	}
	a.mu.Unlock()

	desc := strings.ToLower(filter.SortOrder) == "desc"
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return recordLess(records[j], records[i])
		}
		return recordLess(records[i], records[j])
	})
	return records, nil
}

// recordLess orders by date, then clock-in; records without clock-in first.
func recordLess(x, y attendance.Record) bool {
	if x.Date != y.Date {
		return x.Date < y.Date
	}
	switch {
	case x.ClockIn == nil:
		return y.ClockIn != nil
	case y.ClockIn == nil:
		return false
	default:
		return x.ClockIn.Before(*y.ClockIn)
	}
}

// CurrentSession implements attendance.Service.
func (a *AttendanceServiceImpl) CurrentSession(ctx context.Context, employeeID string) (attendance.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess, ok := a.state.Sessions[employeeID]
	if !ok {
		return attendance.Session{}, attendance.ErrNoOpenSession
	}
	return sess, nil
}

// CloseStaleSessions implements attendance.Service. A stale session is
// closed at its own clock-in time, so it counts as absent with zero hours.
func (a *AttendanceServiceImpl) CloseStaleSessions(ctx context.Context, before time.Time) (int, error) {
	cutoff := a.dateOf(before)

	var closed []attendance.Record
	err := a.mutate(ctx, func(state *attendance.State) error {
		for i := range state.Records {
			rec := &state.Records[i]
			if !rec.IsOpen() || rec.Date >= cutoff {
				continue
			}

			clockOut := *rec.ClockIn
			rec.ClockOut = &clockOut
			rec.HoursWorked = 0
			rec.Status = attendance.StatusAbsent
			if rec.Notes == "" {
				rec.Notes = StaleSessionNote
			} else {
				rec.Notes += "; " + StaleSessionNote
			}
			releaseSession(state, *rec)
			closed = append(closed, rec.Clone())
			a.emit(EventAutoClosed, *rec)
		}

		if len(closed) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(closed) > 0 {
		a.logger.Info("Stale attendance sessions closed", "count", len(closed), "before", cutoff)
	}
	return len(closed), nil
}
