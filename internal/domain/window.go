package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Window is a preferred daily publication window, [Start, End) minutes after midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(value string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q: expected HH:MM-HH:MM", value)
	}
	start, err := parseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", value, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", value, err)
	}
	if end <= start {
		return Window{}, fmt.Errorf("window %q: end must be after start", value)
	}
	return Window{Start: start, End: end}, nil
}

// ParseWindows parses and sorts a list of windows by start time.
func ParseWindows(values []string) ([]Window, error) {
	windows := make([]Window, 0, len(values))
	for _, v := range values {
		w, err := ParseWindow(v)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	return windows, nil
}

// String renders the window back as "HH:MM-HH:MM".
func (w Window) String() string {
	return formatClock(w.Start) + "-" + formatClock(w.End)
}

// On returns the window bounds for the calendar day of day in loc.
func (w Window) On(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return addClock(midnight, w.Start, loc), addClock(midnight, w.End, loc)
}

func addClock(midnight time.Time, offset time.Duration, loc *time.Location) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, m, 0, 0, loc)
}

func parseClock(value string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
