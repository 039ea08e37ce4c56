package rnd

import (
	"time"
)

// Registration is the state of R&D activity registration for a financial year.
type Registration string

const (
	NotRegistered       Registration = "not_registered"
	DeadlineApproaching Registration = "deadline_approaching"
	DeadlinePassed      Registration = "deadline_passed"
)

// ApproachingWindowDays is how close the deadline must be to count as approaching.
const ApproachingWindowDays = 90

// RegistrationDeadline is ten months after the financial year ends.
func RegistrationDeadline(fyEnd time.Time) time.Time {
	return fyEnd.AddDate(0, 10, 0)
}

// DaysUntil counts whole calendar days from now to deadline. Negative once passed.
func DaysUntil(deadline, now time.Time) int {
	d := dateOnly(deadline)
	n := dateOnly(now)
	return int(d.Sub(n).Hours() / 24)
}

// RegistrationStatus derives the registration state purely from the FY end date and now.
func RegistrationStatus(fyEnd, now time.Time) Registration {
	days := DaysUntil(RegistrationDeadline(fyEnd), now)
	switch {
	case days < 0:
		return DeadlinePassed
	case days <= ApproachingWindowDays:
		return DeadlineApproaching
	default:
		return NotRegistered
	}
}

// Advance moves a previously observed state forward. DeadlinePassed is terminal.
func Advance(current Registration, fyEnd, now time.Time) Registration {
	if current == DeadlinePassed {
		return DeadlinePassed
	}
	return RegistrationStatus(fyEnd, now)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
