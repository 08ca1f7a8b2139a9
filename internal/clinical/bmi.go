package clinical

import (
	"strconv"
	"strings"
)

// BMI returns weight / height² with two decimals, or "" unless both inputs
// are strictly positive.
func BMI(weightKg, heightM float64) string {
	if !(weightKg > 0) || !(heightM > 0) {
		return ""
	}
	return strconv.FormatFloat(weightKg/(heightM*heightM), 'f', 2, 64)
}

// BMIFromText is BMI over free-text form values. Each value is read up to
// its first non-numeric character, so "70kg" counts as 70.
func BMIFromText(weight, height string) string {
	w, okW := leadingFloat(weight)
	h, okH := leadingFloat(height)
	if !okW || !okH {
		return ""
	}
	return BMI(w, h)
}

func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
			end++
			continue
		}
		if (c == '-' || c == '+') && end == 0 {
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
