// Package formats parses bibliographic interchange formats (BibTeX, RIS) into
// partial records.
package formats

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

// ErrMalformed is returned for input that is not a parseable record.
var ErrMalformed = errors.New("malformed record")

// bibEntry is one @type{key, field = value, ...} entry.
type bibEntry struct {
	typ    string
	key    string
	fields map[string]string
}

var (
	nameSeparator = regexp.MustCompile(`(?i)\s+and\s+`)
	latexCommand  = regexp.MustCompile(`\\([a-zA-Z]+)\s*`)
)

// BibTeX parses BibTeX text.
type BibTeX struct{}

// NewBibTeX creates a BibTeX parser.
func NewBibTeX() *BibTeX {
	return &BibTeX{}
}

// ParseBibTeX converts the first entry in raw into a partial record.
func (BibTeX) ParseBibTeX(raw string) (*domain.PartialRecord, error) {
	entries, err := parseBib(raw)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no bibtex entry", ErrMalformed)
	}

	e := entries[0]
	f := e.fields

	rec := &domain.PartialRecord{
		Fields: domain.Fields{
			Type:      bibType(e.typ),
			ISBN:      f["isbn"],
			DOI:       f["doi"],
			URL:       f["url"],
			Title:     f["title"],
			Authors:   parsePeople(f["author"]),
			Editors:   parsePeople(f["editor"]),
			Publisher: f["publisher"],
			Location:  f["address"],
			Journal:   f["journal"],
			Series:    f["series"],
			Volume:    f["volume"],
			Issue:     f["number"],
			Pages:     f["pages"],
			Year:      f["year"],
			Month:     f["month"],
			Language:  f["language"],
		},
	}

	if t := f["translator"]; t != "" {
		rec.Translators = parsePeople(t)
	}

	return rec, nil
}

func bibType(t string) domain.RecordType {
	switch t {
	case "article":
		return domain.TypeJournal
	case "online", "misc", "electronic":
		return domain.TypeWeb
	default:
		return domain.TypeBook
	}
}

// parsePeople splits a BibTeX name list ("Last, First and First Last").
func parsePeople(s string) []domain.Name {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var out []domain.Name

	for _, part := range nameSeparator.Split(s, -1) {
		n, err := names.Parse(part)
		if err != nil {
			continue
		}

		out = append(out, n)
	}

	return out
}

// parseBib tokenizes every entry in s. % starts a comment outside values.
func parseBib(s string) ([]bibEntry, error) {
	p := &bibScanner{s: s}

	var entries []bibEntry

	for {
		p.skipSpace()

		if p.eof() {
			return entries, nil
		}

		if p.peek() != '@' {
			p.i++

			continue
		}

		p.i++
		p.skipSpace()
		typ := strings.ToLower(p.ident())
		p.skipSpace()

		if p.eof() || (p.peek() != '{' && p.peek() != '(') {
			return nil, fmt.Errorf("%w: expected '{' after @%s", ErrMalformed, typ)
		}

		p.i++

		if typ == "comment" || typ == "preamble" || typ == "string" {
			p.skipBalanced()

			continue
		}

		p.skipSpace()

		start := p.i
		for !p.eof() && p.peek() != ',' {
			p.i++
		}

		if p.eof() {
			return nil, fmt.Errorf("%w: missing comma after key", ErrMalformed)
		}

		e := bibEntry{typ: typ, key: strings.TrimSpace(s[start:p.i]), fields: map[string]string{}}
		p.i++

		if err := p.fields(e.fields); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}
}

type bibScanner struct {
	s string
	i int
}

func (p *bibScanner) eof() bool  { return p.i >= len(p.s) }
func (p *bibScanner) peek() byte { return p.s[p.i] }

func (p *bibScanner) skipSpace() {
	for !p.eof() {
		switch c := p.peek(); {
		case c == '%':
			for !p.eof() && p.peek() != '\n' {
				p.i++
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.i++
		default:
			return
		}
	}
}

func (p *bibScanner) ident() string {
	start := p.i
	for !p.eof() {
		c := p.peek()
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '_' || c == '-') {
			break
		}

		p.i++
	}

	return p.s[start:p.i]
}

// skipBalanced advances past the closing brace of the current group.
func (p *bibScanner) skipBalanced() {
	depth := 0

	for !p.eof() {
		switch p.peek() {
		case '{', '(':
			depth++
		case '}', ')':
			if depth == 0 {
				p.i++

				return
			}

			depth--
		}

		p.i++
	}
}

func (p *bibScanner) fields(into map[string]string) error {
	for {
		p.skipSpace()

		if p.eof() {
			return fmt.Errorf("%w: unexpected end of entry", ErrMalformed)
		}

		if c := p.peek(); c == '}' || c == ')' {
			p.i++

			return nil
		}

		name := strings.ToLower(p.ident())
		p.skipSpace()

		if name == "" || p.eof() || p.peek() != '=' {
			return fmt.Errorf("%w: expected '=' after field %q", ErrMalformed, name)
		}

		p.i++
		p.skipSpace()

		var parts []string

		for {
			parts = append(parts, p.value())
			p.skipSpace()

			if p.eof() || p.peek() != '#' {
				break
			}

			p.i++
			p.skipSpace()
		}

		into[name] = unescapeBib(strings.Join(parts, ""))

		p.skipSpace()

		if !p.eof() && p.peek() == ',' {
			p.i++
		}
	}
}

func (p *bibScanner) value() string {
	if p.eof() {
		return ""
	}

	switch p.peek() {
	case '{':
		p.i++
		start, depth := p.i, 0

		for !p.eof() {
			switch p.peek() {
			case '\\':
				p.i++
			case '{':
				depth++
			case '}':
				if depth == 0 {
					v := p.s[start:p.i]
					p.i++

					return v
				}

				depth--
			}

			p.i++
		}

		return p.s[start:]
	case '"':
		p.i++
		start, depth := p.i, 0

		for !p.eof() {
			switch p.peek() {
			case '\\':
				p.i++
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 {
					v := p.s[start:p.i]
					p.i++

					return v
				}
			}

			p.i++
		}

		return p.s[start:]
	default:
		start := p.i
		for !p.eof() {
			if c := p.peek(); c == ',' || c == '}' || c == ')' || c == '#' {
				break
			}

			p.i++
		}

		return strings.TrimSpace(p.s[start:p.i])
	}
}

// Combining marks for the LaTeX accent commands \' \` \^ \" \~ \c \v \u \=.
var accents = map[byte]rune{
	'\'': '\u0301', '`': '\u0300', '^': '\u0302', '"': '\u0308', '~': '\u0303', '=': '\u0304',
	'c': '\u0327', 'v': '\u030c', 'u': '\u0306',
}

var latexSymbols = map[string]string{
	"ss": "ß", "o": "ø", "O": "Ø", "ae": "æ", "AE": "Æ", "l": "ł", "L": "Ł", "aa": "å", "AA": "Å",
}

// unescapeBib resolves accent commands and escaped specials, drops grouping
// braces, and collapses whitespace.
func unescapeBib(v string) string {
	var b strings.Builder

	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '{' || c == '}' {
			continue
		}

		if c != '\\' || i+1 >= len(v) {
			b.WriteByte(c)

			continue
		}

		next := v[i+1]
		if mark, ok := accents[next]; ok && i+2 < len(v) && (!isLetter(next) || v[i+2] == '{' || v[i+2] == ' ') {
			j := i + 2
			for j < len(v) && (v[j] == '{' || v[j] == ' ') {
				j++
			}

			if j < len(v) {
				b.WriteByte(v[j])
				b.WriteRune(mark)
				i = j

				for i+1 < len(v) && v[i+1] == '}' {
					i++
				}

				continue
			}
		}

		if strings.IndexByte(`&%$#_{}\`, next) >= 0 {
			b.WriteByte(next)
			i++

			continue
		}

		if loc := latexCommand.FindStringSubmatchIndex(v[i:]); loc != nil && loc[0] == 0 {
			if sym, ok := latexSymbols[v[i+loc[2]:i+loc[3]]]; ok {
				b.WriteString(sym)
			}

			i += loc[1] - 1

			continue
		}

		b.WriteByte(c)
	}

	return strings.Join(strings.Fields(norm.NFC.String(b.String())), " ")
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}
