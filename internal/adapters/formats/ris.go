package formats

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

// risLine matches "TY  - BOOK". Some producers emit a single space or none
// before the dash.
var risLine = regexp.MustCompile(`^([A-Z][A-Z0-9])\s{0,2}-\s?(.*)$`)

// RIS parses RIS tagged text.
type RIS struct{}

// NewRIS creates a RIS parser.
func NewRIS() *RIS {
	return &RIS{}
}

// ParseRIS converts the first RIS record in raw into a partial record.
func (RIS) ParseRIS(raw string) (*domain.PartialRecord, error) {
	tags := map[string][]string{}
	last := ""

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r \t")
		if line == "" {
			continue
		}

		m := risLine.FindStringSubmatch(line)
		if m == nil {
			// continuation of a wrapped value
			if vals := tags[last]; len(vals) > 0 {
				vals[len(vals)-1] += " " + strings.TrimSpace(line)
			}

			continue
		}

		tag, val := m[1], strings.TrimSpace(m[2])
		if tag == "ER" {
			break
		}

		last = tag
		tags[tag] = append(tags[tag], val)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ris: %w", err)
	}

	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: no ris tags", ErrMalformed)
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			for _, v := range tags[k] {
				if v != "" {
					return v
				}
			}
		}

		return ""
	}

	typ := risType(first("TY"))
	rec := &domain.PartialRecord{
		Fields: domain.Fields{
			Type:      typ,
			Title:     first("TI", "T1", "BT"),
			Authors:   risPeople(tags["AU"], tags["A1"]),
			Editors:   risPeople(tags["ED"], tags["A2"]),
			Publisher: first("PB"),
			Location:  first("CY", "PP"),
			Series:    first("T3"),
			Volume:    first("VL"),
			Issue:     first("IS"),
			Language:  first("LA"),
			DOI:       first("DO"),
			URL:       first("UR"),
		},
	}

	if typ == domain.TypeJournal {
		rec.Journal = first("JO", "JF", "T2")
	} else {
		rec.ISBN = firstField(first("SN"))
	}

	if sp, ep := first("SP"), first("EP"); sp != "" && ep != "" {
		rec.Pages = sp + "–" + ep
	} else {
		rec.Pages = sp
	}

	rec.Year, rec.Month, rec.Day = risDate(first("PY", "Y1", "DA"))

	return rec, nil
}

func risType(ty string) domain.RecordType {
	switch strings.ToUpper(ty) {
	case "JOUR", "JFULL", "MGZN", "NEWS":
		return domain.TypeJournal
	case "ELEC", "WEB", "BLOG":
		return domain.TypeWeb
	default:
		return domain.TypeBook
	}
}

func risPeople(lists ...[]string) []domain.Name {
	var out []domain.Name

	for _, list := range lists {
		for _, raw := range list {
			n, err := names.Parse(raw)
			if err != nil {
				continue
			}

			out = append(out, n)
		}
	}

	return out
}

// risDate splits "YYYY/MM/DD/other" (any part may be empty).
func risDate(s string) (year, month, day string) {
	parts := strings.Split(s, "/")
	if len(parts) == 1 {
		parts = strings.Split(s, "-")
	}

	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}

		return ""
	}

	return get(0), get(1), get(2)
}

// firstField returns the first whitespace-separated token, e.g. the ISBN in
// "9780349119168 (pbk.)".
func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}

	return ""
}
