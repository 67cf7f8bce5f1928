package attendance

import "errors"

// Attendance domain errors
var (
	// Clock-in / clock-out errors
	ErrAlreadyClockedIn      = errors.New("employee already has an open session for this date")
	ErrNoOpenSession         = errors.New("employee has no open session for this date")
	ErrClockOutBeforeClockIn = errors.New("clock-out time is before clock-in time")

	// Absence errors
	ErrRecordExists = errors.New("attendance record already exists for this date")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
)
