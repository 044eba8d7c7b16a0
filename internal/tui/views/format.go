package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
)

// formatTimestamp renders a unix-ms time as a clock for today and a date
// otherwise.
func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	if sameDay(t, time.Now()) {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// formatClock always includes the clock, prefixed with the date when the
// time is not from today.
func formatClock(ms int64) string {
	if ms == 0 {
		return "     "
	}
	t := time.UnixMilli(ms)
	if sameDay(t, time.Now()) {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func colorTag(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
