// Package names parses free-text personal names into first/last form.
package names

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// ErrInvalidName is returned when the text does not look like any name.
var ErrInvalidName = errors.New("invalid name")

const maxWords = 6

var (
	particles = map[string]bool{
		"al": true, "bin": true, "da": true, "das": true, "de": true, "del": true,
		"della": true, "den": true, "der": true, "di": true, "dos": true, "du": true,
		"el": true, "ibn": true, "la": true, "le": true, "ten": true, "ter": true,
		"van": true, "von": true,
	}
	suffixes = map[string]bool{
		"jr": true, "jr.": true, "sr": true, "sr.": true, "ii": true, "iii": true, "iv": true,
	}

	foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Clean NFC-normalizes s, collapses whitespace, and trims stray separators.
func Clean(s string) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")

	return strings.Trim(s, ` ,;"`)
}

// Parse splits raw into a Name.
//
// "Last, First" is honored. Otherwise the final word is the last name, with
// lower-case particles (van, de, bin, ...) and generational suffixes kept on
// the last-name side. A single word becomes an organizational name.
func Parse(raw string) (domain.Name, error) {
	s := Clean(raw)
	if !plausible(s) {
		return domain.Name{}, ErrInvalidName
	}

	if last, first, ok := strings.Cut(s, ","); ok {
		last, first = strings.TrimSpace(last), strings.TrimSpace(first)
		if last == "" {
			return domain.Name{}, ErrInvalidName
		}

		if suffixes[strings.ToLower(first)] {
			n, err := Parse(last)
			if err != nil {
				return domain.Name{}, err
			}

			n.Last += " " + first

			return n, nil
		}

		if strings.Contains(first, ",") {
			return domain.Name{}, ErrInvalidName
		}

		return domain.Name{First: first, Last: last}, nil
	}

	words := strings.Fields(s)
	if len(words) > maxWords {
		return domain.Name{}, ErrInvalidName
	}

	if len(words) == 1 {
		return domain.Name{Last: words[0]}, nil
	}

	start := len(words) - 1
	if start > 1 && suffixes[strings.ToLower(words[start])] {
		start--
	}

	for start > 1 && particles[words[start-1]] {
		start--
	}

	return domain.Name{
		First: strings.Join(words[:start], " "),
		Last:  strings.Join(words[start:], " "),
	}, nil
}

// Organization returns raw as an organizational name: no first name, the
// whole text as the last name.
func Organization(raw string) domain.Name {
	return domain.Name{Last: Clean(raw)}
}

// IsOrganization reports whether n has no personal first name.
func IsOrganization(n domain.Name) bool {
	return n.IsOrganization()
}

// Key folds case and accents so that "Élodie Dupont" and "elodie dupont" compare equal.
func Key(n domain.Name) string {
	folded, _, err := transform.String(foldAccents, strings.ToLower(n.String()))
	if err != nil {
		return strings.ToLower(n.String())
	}

	return folded
}

// Equal compares names by Key.
func Equal(a, b domain.Name) bool {
	return Key(a) == Key(b)
}

// IsLower reports whether s has at least one cased letter and no upper-case ones.
func IsLower(s string) bool {
	cased := false

	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			return false
		}

		if unicode.IsLower(r) {
			cased = true
		}
	}

	return cased
}

// IsUpper reports whether s has at least one cased letter and no lower-case ones.
func IsUpper(s string) bool {
	cased := false

	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}

		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}

	return cased
}

func plausible(s string) bool {
	if s == "" {
		return false
	}

	letters := false

	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsMark(r), unicode.IsSpace(r):
		case strings.ContainsRune(".-'’,\u200c", r):
		default:
			return false
		}
	}

	return letters
}
