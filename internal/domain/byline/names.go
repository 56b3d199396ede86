package byline

import (
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

// ToNames turns a byline string such as "By Roger Highfield, Science Editor"
// into names. It returns nil when nothing survives.
//
// A byline containing a colon or a bare four-digit number is rejected, and a
// trailing date is cut off. Candidates carrying a stopword (Staff, Editor,
// www., ...) are dropped, as is anything that does not parse as a name.
// Organizations are returned only when no personal name was found.
func ToNames(raw string) []domain.Name {
	s, _, _ := strings.Cut(raw, "|")
	if strings.ContainsAny(s, ":：") {
		return nil
	}

	if loc := anyDate.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	if strings.TrimSpace(s) == "" || fourDigits.MatchString(s) {
		return nil
	}

	// ands are normalized before the first-line cut so "and\n" survives it
	s = normalizeAnds.ReplaceAllString(s, " and ")
	s = normalizeCommas.ReplaceAllString(s, ", ")
	s = byPrefix.ReplaceAllString(strings.TrimSpace(s), "$1")
	s = andOrCommaSuffix.ReplaceAllString(s, "")

	// Without " and " or a space before the first comma, the comma may be
	// the "Last, First" separator.
	split := andSplit
	if first, _, _ := strings.Cut(s, ", "); strings.Contains(strings.ToLower(s), " and ") ||
		strings.Contains(first, " ") {
		split = andOrCommaSplit
	}

	var found []domain.Name

	for _, candidate := range split.Split(s, -1) {
		candidate, _, _ = strings.Cut(candidate, " in ")
		candidate, _, _ = strings.Cut(candidate, " for ")

		if isStopword(candidate) {
			continue
		}

		n, err := names.Parse(candidate)
		if err != nil {
			continue
		}

		if n.First == "The" || strings.HasPrefix(n.First, "The ") ||
			strings.HasPrefix(n.First, "خبرگزار") ||
			names.IsLower(n.Last) {
			n = names.Organization(candidate)
		}

		found = append(found, n)
	}

	if len(found) == 0 {
		return nil
	}

	people := make([]domain.Name, 0, len(found))

	for _, n := range found {
		if !n.IsOrganization() {
			people = append(people, n)
		}
	}

	if len(people) == 0 {
		return found[:1]
	}

	return people
}

func isStopword(s string) bool {
	ok, err := stopwords.MatchString(s)

	return ok && err == nil
}
