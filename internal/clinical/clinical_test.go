package clinical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeYears(t *testing.T) {
	birth := date(2020, time.June, 15)

	tests := []struct {
		now  time.Time
		want int
	}{
		{date(2024, time.June, 14), 3},
		{date(2024, time.June, 15), 4},
		{date(2024, time.May, 30), 3},
		{date(2024, time.December, 1), 4},
		{date(2020, time.June, 15), 0},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(DateLayout), func(t *testing.T) {
			assert.Equal(t, tt.want, AgeYears(birth, tt.now))
		})
	}
}

func TestAgeYearsLeapDay(t *testing.T) {
	birth := date(2020, time.February, 29)
	assert.Equal(t, 0, AgeYears(birth, date(2021, time.February, 28)))
	assert.Equal(t, 1, AgeYears(birth, date(2021, time.March, 1)))
}

func TestAgeLabel(t *testing.T) {
	now := date(2024, time.June, 15)

	tests := []struct {
		name  string
		birth time.Time
		want  string
	}{
		{"newborn", date(2024, time.June, 1), "Recién nacido"},
		{"one month", date(2024, time.May, 15), "1 mes"},
		{"months", date(2023, time.October, 20), "7 meses"},
		{"one year", date(2023, time.June, 15), "1 año"},
		{"years", date(1990, time.January, 1), "34 años"},
		{"future", date(2025, time.January, 1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeLabel(tt.birth, now))
		})
	}
}

func TestValidBirthDate(t *testing.T) {
	now := date(2024, time.June, 15)
	assert.True(t, ValidBirthDate(date(2000, time.January, 1), now))
	assert.True(t, ValidBirthDate(now, now))
	assert.False(t, ValidBirthDate(date(2024, time.June, 16), now))
	assert.False(t, ValidBirthDate(date(1900, time.January, 1), now))
}

func TestBMI(t *testing.T) {
	assert.Equal(t, "22.86", BMI(70, 1.75))
	assert.Equal(t, "", BMI(0, 1.75))
	assert.Equal(t, "", BMI(70, 0))
	assert.Equal(t, "", BMI(-70, 1.75))

	assert.Equal(t, "22.86", BMIFromText("70kg", "1.75 m"))
	assert.Equal(t, "", BMIFromText("", "1.75"))
	assert.Equal(t, "", BMIFromText("abc", "1.75"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Normalize("jose perez"), Normalize("José Pérez"))
	assert.Equal(t, "nino munoz", Normalize("Niño Muñoz"))
	assert.Equal(t, "garcia", Normalize("GARCÍA"))
}

func TestFindDuplicate(t *testing.T) {
	existing := []string{"María López", "José Pérez"}

	assert.Equal(t, 1, FindDuplicate("jose", existing))
	assert.Equal(t, 0, FindDuplicate("LOPEZ", existing))
	assert.Equal(t, -1, FindDuplicate("jo", existing))
	assert.Equal(t, -1, FindDuplicate("Ana", existing))
}

func TestMatchesSearch(t *testing.T) {
	assert.True(t, MatchesSearch("José Pérez", "perez"))
	assert.True(t, MatchesSearch("José Pérez", " "))
	assert.False(t, MatchesSearch("José Pérez", "ana"))
}

func TestHasAllergies(t *testing.T) {
	assert.True(t, HasAllergies("Penicilina"))
	assert.False(t, HasAllergies(" Negadas "))
	assert.False(t, HasAllergies(""))
	assert.False(t, HasAllergies("N/A"))
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	from, to, err := DayBounds("2024-03-10", "2024-03-10", loc)
	require.NoError(t, err)

	inside := time.Date(2024, 3, 10, 23, 59, 59, 0, loc)
	after := time.Date(2024, 3, 11, 0, 0, 1, 0, loc)
	before := time.Date(2024, 3, 9, 23, 59, 59, 999_000_000, loc)

	assert.True(t, InRange(inside, from, to))
	assert.True(t, InRange(from, from, to))
	assert.True(t, InRange(to, from, to))
	assert.False(t, InRange(after, from, to))
	assert.False(t, InRange(before, from, to))

	// same instant seen from UTC is still inside
	assert.True(t, InRange(inside.UTC(), from, to))

	_, _, err = DayBounds("2024-03-11", "2024-03-10", loc)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, _, err = DayBounds("10/03/2024", "2024-03-10", loc)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseLegacyDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-10", date(2024, time.March, 10)},
		{"2024/3/5", date(2024, time.March, 5)},
		{"10/03/2024", date(2024, time.March, 10)},
		{"5-3-2024", date(2024, time.March, 5)},
		{"2024-03-10T08:30:00Z", time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)},
		{"15/06/2020 00:00:00", date(2020, time.June, 15)},
		{"10/03/2024 09:30", time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"2024-03-10 18:05:10", time.Date(2024, 3, 10, 18, 5, 10, 0, time.UTC)},
		{"10/03/2024 hrs", date(2024, time.March, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLegacyDate(tt.in, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "ayer", "31/02/2024", "2024-13-01", "10/03"} {
		_, err := ParseLegacyDate(bad, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestCleanNumber(t *testing.T) {
	assert.Equal(t, "12", CleanNumber("12kg"))
	assert.Equal(t, "36.5", CleanNumber("36.5 °C"))
	assert.Equal(t, "1.70", CleanNumber("1.70 mts"))
	assert.Equal(t, "72.5", CleanNumber(72.5))
	assert.Equal(t, "", CleanNumber(nil))
	assert.Equal(t, "", CleanNumber(0.0))
	assert.Equal(t, "", CleanNumber("n/a"))
}
