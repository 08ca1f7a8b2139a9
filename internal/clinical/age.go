package clinical

import (
	"fmt"
	"time"
)

// MaxAgeYears bounds a plausible birth date.
const MaxAgeYears = 120

// DateLayout is the calendar-date format stored in birthDate fields.
const DateLayout = "2006-01-02"

// AgeYears returns the number of completed years between birth and now,
// comparing calendar dates in now's location.
func AgeYears(birth, now time.Time) int {
	birth = birth.In(now.Location())
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()

	years := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		years--
	}
	return years
}

// AgeMonths returns the number of completed months between birth and now.
func AgeMonths(birth, now time.Time) int {
	birth = birth.In(now.Location())
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()

	months := (ny-by)*12 + int(nm-bm)
	if nd < bd {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// AgeLabel renders an age for display: years from one year on, months
// below that, and "Recién nacido" for the first month. A birth date after
// now renders as "".
func AgeLabel(birth, now time.Time) string {
	if birth.After(now) {
		return ""
	}
	if y := AgeYears(birth, now); y >= 1 {
		if y == 1 {
			return "1 año"
		}
		return fmt.Sprintf("%d años", y)
	}
	switch m := AgeMonths(birth, now); m {
	case 0:
		return "Recién nacido"
	case 1:
		return "1 mes"
	default:
		return fmt.Sprintf("%d meses", m)
	}
}

// ParseBirthDate reads a YYYY-MM-DD birth date as midnight in loc.
func ParseBirthDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ValidBirthDate rejects dates in the future and dates more than
// MaxAgeYears before now.
func ValidBirthDate(birth, now time.Time) bool {
	if birth.After(now) {
		return false
	}
	return !birth.Before(now.AddDate(-MaxAgeYears, 0, 0))
}
