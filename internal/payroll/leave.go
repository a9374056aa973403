package payroll

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrLeaveRange = errors.New("endDate must not be before startDate")

// LeaveDays validates an inclusive leave range and returns its length in
// calendar days.
func LeaveDays(startDate, endDate string) (int, error) {
	start, err := time.Parse(DateLayout, strings.TrimSpace(startDate))
	if err != nil {
		return 0, fmt.Errorf("invalid startDate %q", startDate)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(endDate))
	if err != nil {
		return 0, fmt.Errorf("invalid endDate %q", endDate)
	}
	if end.Before(start) {
		return 0, ErrLeaveRange
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

// Overlaps reports whether two inclusive "YYYY-MM-DD" ranges share a day.
// The layout sorts lexically, so plain string comparison is enough.
func Overlaps(startA, endA, startB, endB string) bool {
	return startA <= endB && startB <= endA
}
