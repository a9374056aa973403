package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	ClockLayout = "15:04:05"
)

// ParseClock converts a local "HH:MM:SS" (or "HH:MM") string into the offset
// from midnight.
func ParseClock(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", value)
	}

	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || len(part) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid clock %q", value)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

// WorkedHours returns the hours between check-in and check-out rounded to two
// places. A missing, unparsable or earlier check-out yields 0.
func WorkedHours(checkIn, checkOut string) float64 {
	return workedHours(checkIn, checkOut).InexactFloat64()
}

func workedHours(checkIn, checkOut string) decimal.Decimal {
	if strings.TrimSpace(checkIn) == "" || strings.TrimSpace(checkOut) == "" {
		return decimal.Zero
	}
	in, err := ParseClock(checkIn)
	if err != nil {
		return decimal.Zero
	}
	out, err := ParseClock(checkOut)
	if err != nil || out <= in {
		return decimal.Zero
	}
	seconds := decimal.NewFromInt(int64((out - in) / time.Second))
	return seconds.Div(decimal.NewFromInt(3600)).Round(2)
}

// Shift is the check-in/check-out pair of one attendance day.
type Shift struct {
	CheckIn  string
	CheckOut string
}

type Summary struct {
	DaysPresent int     `json:"daysPresent"`
	TotalHours  float64 `json:"totalHours"`
	DayRate     float64 `json:"dayRate"`
	HourlyRate  float64 `json:"hourlyRate"`
	BasicPay    float64 `json:"basicPay"`
}

// Summarize aggregates a month of shifts. The hourly rate is the day rate
// spread over the standard working day; basic pay is total hours times that
// rate.
func Summarize(shifts []Shift, dayRate float64, standardHours int) Summary {
	if standardHours <= 0 {
		standardHours = 8
	}

	days := 0
	hours := decimal.Zero
	for _, s := range shifts {
		if strings.TrimSpace(s.CheckIn) == "" {
			continue
		}
		days++
		hours = hours.Add(workedHours(s.CheckIn, s.CheckOut))
	}

	rate := decimal.NewFromFloat(dayRate)
	hourly := rate.Div(decimal.NewFromInt(int64(standardHours))).Round(2)
	basic := hours.Mul(rate).Div(decimal.NewFromInt(int64(standardHours))).Round(2)

	return Summary{
		DaysPresent: days,
		TotalHours:  hours.Round(2).InexactFloat64(),
		DayRate:     rate.Round(2).InexactFloat64(),
		HourlyRate:  hourly.InexactFloat64(),
		BasicPay:    basic.InexactFloat64(),
	}
}

// Totals returns gross (basic plus allowances) and net (gross minus
// deductions, floored at zero).
func Totals(basic float64, allowances, deductions []float64) (gross, net float64) {
	g := decimal.NewFromFloat(basic)
	for _, a := range allowances {
		g = g.Add(decimal.NewFromFloat(a))
	}
	n := g
	for _, d := range deductions {
		n = n.Sub(decimal.NewFromFloat(d))
	}
	if n.IsNegative() {
		n = decimal.Zero
	}
	return g.Round(2).InexactFloat64(), n.Round(2).InexactFloat64()
}

// MonthRange returns the first and last day of a "YYYY-MM" month as dates.
func MonthRange(month string) (string, string, error) {
	start, err := time.Parse(MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q", month)
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(DateLayout), end.Format(DateLayout), nil
}
