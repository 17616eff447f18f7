// Package ptbr renders calendar dates the way the portal shows them to patients.
package ptbr

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const isoLayout = "2006-01-02"

// Layouts handed to monday; it swaps the English names for pt-BR ones.
// The abbreviated month carries a trailing period, as pt-BR writes it.
const (
	fullLayout     = "Monday, 02 de January de 2006"
	longLayout     = "02 de January de 2006"
	shortLayout    = "02 de Jan. de 2006"
	dayMonthLayout = "02 de January"
)

// Parse reads a YYYY-MM-DD calendar date as a UTC midnight.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(isoLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("ptbr: invalid date %q: %w", date, err)
	}
	return t, nil
}

// FullDate renders "quinta-feira, 15 de agosto de 2024".
func FullDate(t time.Time) string {
	return render(t, fullLayout)
}

// LongDate renders "15 de agosto de 2024".
func LongDate(t time.Time) string {
	return render(t, longLayout)
}

// ShortDate renders "20 de mai. de 2024".
func ShortDate(t time.Time) string {
	return render(t, shortLayout)
}

// DayMonth renders "15 de agosto".
func DayMonth(t time.Time) string {
	return render(t, dayMonthLayout)
}

// Format parses date and applies render, falling back to the raw string.
func Format(date string, render func(time.Time) string) string {
	t, err := Parse(date)
	if err != nil {
		return date
	}
	return render(t)
}

// pt-BR keeps weekday and month names in lower case mid-sentence.
func render(t time.Time, layout string) string {
	return strings.ToLower(monday.Format(t, layout, monday.LocalePtBR))
}
