package services

import (
	"fmt"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
)

// DefaultDueDay is used when a template has no day of month set.
const DefaultDueDay = 10

const periodOnce = "ONCE"

// PeriodKey derives the billing period a generation run for target falls in.
func PeriodKey(r models.Recurrence, target time.Time) (string, error) {
	y, m, _ := target.Date()
	switch r {
	case models.RecurrenceOneTime:
		return periodOnce, nil
	case models.RecurrenceMonthly:
		return fmt.Sprintf("%04d-%02d", y, int(m)), nil
	case models.RecurrenceQuarterly:
		return fmt.Sprintf("%04d-Q%d", y, (int(m)-1)/3+1), nil
	case models.RecurrenceYearly:
		return fmt.Sprintf("%04d", y), nil
	}
	return "", fmt.Errorf("unsupported recurrence %q", r)
}

// DueDate places day in target's month, clamped to the month's last day.
func DueDate(target time.Time, day int) time.Time {
	y, m, _ := target.Date()
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// dayStart truncates t to midnight UTC. Due dates are calendar days, so a
// fee is payable until the end of its due day and overdue from the next one.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
