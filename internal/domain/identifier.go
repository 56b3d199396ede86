package domain

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// IdentifierKind tags the flavor of an Identifier.
type IdentifierKind string

// Supported identifier kinds.
const (
	KindISBN10 IdentifierKind = "isbn10"
	KindISBN13 IdentifierKind = "isbn13"
	KindOCLC   IdentifierKind = "oclc"
	KindDOI    IdentifierKind = "doi"
	KindURL    IdentifierKind = "url"
)

// IsISBN reports whether the kind is one of the ISBN flavors.
func (k IdentifierKind) IsISBN() bool {
	return k == KindISBN10 || k == KindISBN13
}

// Identifier is an immutable tagged identifier value.
// Value keeps the text exactly as it was found, separators included.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// String returns the raw value.
func (id Identifier) String() string {
	return id.Value
}

// Both ISBN patterns require one consistent separator between all groups
// (captured once, then back-referenced) and validate the group lengths with a
// lookahead before consuming the digits. regexp2 is needed for both.
var (
	isbn13Pattern = regexp2.MustCompile(
		`97[89](?>([ -]?))(?=[0-9]{1,5}(?>\1?)[0-9]{1,7}(?>\1?)[0-9]{1,6}(?>\1?)[0-9])(?:[0-9](?>\1*)){9}[0-9]`,
		regexp2.None,
	)
	isbn10Pattern = regexp2.MustCompile(
		`(?=[0-9]{1,5}(?>([ -]?))[0-9]{1,7}(?>\1?)[0-9]{1,6}(?>\1?)[0-9])(?:[0-9](?>\1*)){9}[0-9X]`,
		regexp2.None,
	)

	doiPattern    = regexp.MustCompile(`\b(10\.\d{4,9}/[^\s"'<>]+)`)
	oclcPattern   = regexp.MustCompile(`(?i)^\s*(?:\(ocolc\)\s*|oclc[:\s]*|ocm|ocn|on)?(\d{1,10})\s*$`)
	urlPattern    = regexp.MustCompile(`(?i)^https?://\S+$`)
	doiURLPattern = regexp.MustCompile(`(?i)^https?://(?:dx\.)?doi\.org/`)
)

// ExtractISBN locates an ISBN inside container.
//
// With pure set, the whole input is taken verbatim as the ISBN. Otherwise the
// first ISBN-13 is preferred and the first ISBN-10 is the fallback. The
// returned Value is the matched text, separators included.
func ExtractISBN(container string, pure bool) (Identifier, error) {
	if pure {
		kind := KindISBN10
		if len(CanonicalISBN(container)) == 13 {
			kind = KindISBN13
		}

		return Identifier{Kind: kind, Value: container}, nil
	}

	if m, _ := isbn13Pattern.FindStringMatch(container); m != nil {
		return Identifier{Kind: KindISBN13, Value: m.String()}, nil
	}

	if m, _ := isbn10Pattern.FindStringMatch(container); m != nil {
		return Identifier{Kind: KindISBN10, Value: m.String()}, nil
	}

	return Identifier{}, NewIdentifierNotFoundError("ISBN", container)
}

// ParseIdentifier classifies free-form input as a URL, DOI, ISBN, or OCLC number.
func ParseIdentifier(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}, NewIdentifierNotFoundError("identifier", raw)
	}

	if urlPattern.MatchString(s) {
		if doiURLPattern.MatchString(s) {
			if m := doiPattern.FindStringSubmatch(s); m != nil {
				return Identifier{Kind: KindDOI, Value: m[1]}, nil
			}
		}

		return Identifier{Kind: KindURL, Value: s}, nil
	}

	if m := doiPattern.FindStringSubmatch(s); m != nil {
		return Identifier{Kind: KindDOI, Value: m[1]}, nil
	}

	// A bare 10-digit run is an ISBN only when its check digit agrees;
	// otherwise it is a (long) OCLC number.
	if m := oclcPattern.FindStringSubmatch(s); m != nil {
		digits := m[1]
		bare := digits == s
		if !bare || len(digits) < 10 || (len(digits) == 10 && !ValidISBN10(digits)) {
			return Identifier{Kind: KindOCLC, Value: digits}, nil
		}
	}

	if id, err := ExtractISBN(s, false); err == nil {
		return id, nil
	}

	return Identifier{}, NewIdentifierNotFoundError("identifier", raw)
}

// CanonicalISBN strips separators, keeping digits and the X check character.
// The digit count is preserved so that ISBNs differing only by a leading zero
// never compare equal.
func CanonicalISBN(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'X' || r == 'x':
			b.WriteByte('X')
		}
	}

	return b.String()
}

// SameISBN reports whether two ISBN strings denote the same number.
// Empty inputs never match.
func SameISBN(a, b string) bool {
	ca, cb := CanonicalISBN(a), CanonicalISBN(b)

	return ca != "" && ca == cb
}

// ValidISBN10 checks the mod-11 check character of a canonical ISBN-10.
func ValidISBN10(s string) bool {
	c := CanonicalISBN(s)
	if len(c) != 10 {
		return false
	}

	sum := 0

	for i, r := range c {
		d := int(r - '0')
		if r == 'X' {
			if i != 9 {
				return false
			}

			d = 10
		}

		sum += (10 - i) * d
	}

	return sum%11 == 0
}
