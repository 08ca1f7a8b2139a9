package clinical

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinDuplicateQuery is the shortest candidate name that is checked for
// duplicates.
const MinDuplicateQuery = 3

// Normalize lowercases s and strips diacritics, so "José Pérez" and
// "jose perez" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// FindDuplicate returns the index of the first existing name that contains
// candidate after normalization, or -1. Candidates shorter than
// MinDuplicateQuery never match.
func FindDuplicate(candidate string, existing []string) int {
	if utf8.RuneCountInString(candidate) < MinDuplicateQuery {
		return -1
	}
	needle := Normalize(candidate)
	for i, name := range existing {
		if strings.Contains(Normalize(name), needle) {
			return i
		}
	}
	return -1
}

// MatchesSearch reports whether name contains term after normalization. An
// empty term matches everything.
func MatchesSearch(name, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	return strings.Contains(Normalize(name), Normalize(term))
}

var noAllergyMarkers = map[string]bool{
	"":             true,
	"-":            true,
	"n/a":          true,
	"no":           true,
	"negado":       true,
	"negada":       true,
	"negadas":      true,
	"negativas":    true,
	"ninguna":      true,
	"sin alergias": true,
}

// HasAllergies reports whether a free-text allergies field records an
// actual allergy rather than a negation such as "Negadas".
func HasAllergies(text string) bool {
	return !noAllergyMarkers[strings.ToLower(strings.TrimSpace(text))]
}
