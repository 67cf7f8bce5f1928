package attendance

import (
	"math"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/attendance"
)

// Session length thresholds in hours.
const (
	MinSessionHours = 0.1 // below this the session is treated as accidental
	HalfDayHours    = 4.0
	FullDayHours    = 8.0
)

// HoursBetween returns the elapsed hours from in to out rounded to two
// decimals, never negative.
func HoursBetween(in, out time.Time) float64 {
	hours := out.Sub(in).Hours()
	if hours < 0 {
		return 0
	}
	return math.Round(hours*100) / 100
}

// Classify derives the day status from hours worked. It never returns
// StatusLate: lateness depends on a schedule this tracker does not know.
func Classify(hours float64) attendance.Status {
	switch {
	case hours < MinSessionHours:
		return attendance.StatusAbsent
	case hours < HalfDayHours:
		return attendance.StatusAbsent
	case hours < FullDayHours:
		return attendance.StatusHalfDay
	default:
		return attendance.StatusPresent
	}
}
