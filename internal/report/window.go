package report

import (
	"fmt"
	"time"
)

// BucketUnit is the date_trunc unit used to group events.
type BucketUnit string

const (
	BucketHour  BucketUnit = "hour"
	BucketDay   BucketUnit = "day"
	BucketWeek  BucketUnit = "week"
	BucketMonth BucketUnit = "month"
)

// Window is a resolved [Start, End) reporting range with its bucket unit.
type Window struct {
	Preset string
	Start  time.Time
	End    time.Time
	Unit   BucketUnit
}

// Length is the window duration; the previous period has the same length.
func (w Window) Length() time.Duration { return w.End.Sub(w.Start) }

// Previous is the equal-length window immediately preceding Start.
func (w Window) Previous() (start, end time.Time) {
	return w.Start.Add(-w.Length()), w.Start
}

// PresetNeedsEarliest reports whether the preset cannot be resolved
// without the campaign's earliest event time.
func PresetNeedsEarliest(preset string) bool { return preset == "all" }

// ResolveWindow maps a named preset to a concrete window. Bucket policy:
// single-day windows bucket by hour, week-scale by day, month-scale by
// week, year-scale and larger by month.
func ResolveWindow(preset string, now time.Time) (Window, error) {
	day := startOfDay(now)
	switch preset {
	case "", "today":
		return Window{Preset: "today", Start: day, End: day.AddDate(0, 0, 1), Unit: BucketHour}, nil
	case "7d", "week":
		end := day.AddDate(0, 0, 1)
		return Window{Preset: preset, Start: end.AddDate(0, 0, -7), End: end, Unit: BucketDay}, nil
	case "month":
		end := day.AddDate(0, 0, 1)
		return Window{Preset: preset, Start: end.AddDate(0, 0, -30), End: end, Unit: BucketDay}, nil
	case "this_week":
		start := startOfWeek(day)
		return Window{Preset: preset, Start: start, End: start.AddDate(0, 0, 7), Unit: BucketDay}, nil
	case "this_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Preset: preset, Start: start, End: start.AddDate(0, 1, 0), Unit: BucketWeek}, nil
	case "this_year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return Window{Preset: preset, Start: start, End: start.AddDate(1, 0, 0), Unit: BucketMonth}, nil
	default:
		return Window{}, fmt.Errorf("unknown window preset %q", preset)
	}
}

// AllWindow spans from the campaign's earliest event (or today when it has
// none) through the end of today.
func AllWindow(earliest time.Time, hasEvents bool, now time.Time) Window {
	end := startOfDay(now).AddDate(0, 0, 1)
	start := startOfDay(now)
	if hasEvents {
		start = startOfDay(earliest)
	}
	return Window{Preset: "all", Start: start, End: end, Unit: BucketMonth}
}

// CustomWindow covers whole days from start through end inclusive. A
// single-day range buckets by hour.
func CustomWindow(start, end time.Time) Window {
	s := startOfDay(start)
	e := startOfDay(end).AddDate(0, 0, 1)
	if !e.After(s) {
		e = s.AddDate(0, 0, 1)
	}
	unit := BucketDay
	if e.Sub(s) <= 24*time.Hour {
		unit = BucketHour
	}
	return Window{Preset: "custom", Start: s, End: e, Unit: unit}
}

// MonthWindow is the calendar month [first, first of next), bucketed by day.
// Used by the CSV export.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{Preset: "month_csv", Start: start, End: start.AddDate(0, 1, 0), Unit: BucketDay}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek backs up to the most recent Monday.
func startOfWeek(day time.Time) time.Time {
	diff := int(day.Weekday()) - int(time.Monday)
	if diff < 0 {
		diff += 7
	}
	return day.AddDate(0, 0, -diff)
}
