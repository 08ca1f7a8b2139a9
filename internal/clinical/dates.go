package clinical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayBounds returns the first and last instants of the inclusive local day
// range [start, end], with millisecond precision: start 00:00:00.000 and
// end 23:59:59.999.
func DayBounds(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	day, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}
	to := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start, end)
	}
	return from, to, nil
}

// InRange reports whether t lies within [from, to].
func InRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// ParseLegacyDate reads the date formats found in legacy exports: RFC 3339,
// year-first (2024-03-10, 2024/3/10) and day-first (10/03/2024, 10-3-2024),
// optionally followed by a clock time ("10/03/2024 09:30"). Calendar dates
// without a readable time resolve to midnight in loc.
func ParseLegacyDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, nil
	}

	day, clock, _ := strings.Cut(s, " ")
	parts := strings.FieldsFunc(day, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}

	y, m, d := nums[2], nums[1], nums[0]
	if len(strings.TrimSpace(parts[0])) == 4 {
		y, d = nums[0], nums[2]
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if h, mi, sec, ok := parseClock(clock); ok {
		t = time.Date(y, time.Month(m), d, h, mi, sec, 0, loc)
	}
	return t, nil
}

var clockLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"}

// parseClock reads the time that some exports append to dates. Anything it
// cannot read is ignored.
func parseClock(s string) (hour, minute, second int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, 0, false
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, s); err == nil {
			return c.Hour(), c.Minute(), c.Second(), true
		}
	}
	return 0, 0, 0, false
}

// CleanNumber keeps only digits and decimal points, dropping units such as
// "kg" or "°C". Absent or zero-like input yields "".
func CleanNumber(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case float64:
		if t == 0 {
			return ""
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		s = strconv.Itoa(t)
	default:
		s = fmt.Sprint(t)
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
