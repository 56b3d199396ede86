// Package byline recovers author names from article HTML.
//
// Extraction is a cascade of strategies tried in a fixed order: author <meta>
// tags, then byline-marked elements and inline author objects, then a "By ..."
// line in the tag-stripped text. The first strategy that yields any name wins.
// Within the first two strategies only matches sharing the group id
// (the attribute text that matched) of the first productive match are
// collected, so the scan stops at the first differently-identified match.
package byline

import (
	"errors"
	"fmt"
	"html"

	"github.com/dlclark/regexp2"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

// Strategy identifiers.
const (
	StrategyMeta = "meta"
	StrategyTag  = "tag"
	StrategyText = "text"
)

// Strategy is one stage of the cascade. Extract returns ErrMatchTimeout,
// alongside any names already found, when the stage was cut short.
type Strategy struct {
	Name    string
	Extract func(doc string) ([]domain.Name, error)
}

// Candidate is a raw byline span found by a strategy, before name parsing.
type Candidate struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy"`
	GroupID  string `json:"group_id,omitempty"`
}

// Strategies returns the cascade in evaluation order.
func Strategies() []Strategy {
	return []Strategy{
		{Name: StrategyMeta, Extract: scanMeta},
		{Name: StrategyTag, Extract: scanTags},
		{Name: StrategyText, Extract: scanText},
	}
}

// FindAuthors returns the names from the first productive strategy, or nil.
func FindAuthors(doc string) []domain.Name {
	found, _ := Scan(doc)

	return found
}

// Scan is FindAuthors that also reports the strategies that were cut short
// by the match time limit before a productive one answered. The error names
// each aborted strategy and wraps ErrMatchTimeout.
func Scan(doc string) ([]domain.Name, error) {
	var aborted []error

	for _, s := range Strategies() {
		found, err := s.Extract(doc)
		if err != nil {
			aborted = append(aborted, fmt.Errorf("%s strategy: %w", s.Name, err))
		}

		if len(found) > 0 {
			return dedupe(found), errors.Join(aborted...)
		}
	}

	return nil, errors.Join(aborted...)
}

// FromMeta reads author <meta> tags.
func FromMeta(doc string) []domain.Name {
	found, _ := scanMeta(doc)

	return found
}

func scanMeta(doc string) ([]domain.Name, error) {
	var (
		found   []domain.Name
		groupID string
	)

	err := eachMatch(metaAuthor, doc, func(m *regexp2.Match) bool {
		id := group(m, "ida", "idb")
		if groupID != "" && id != groupID {
			return false
		}

		if ns := ToNames(html.UnescapeString(group(m, "resa", "resb"))); len(ns) > 0 {
			found = append(found, ns...)
			groupID = id
		}

		return true
	})

	return found, err
}

// FromTags reads byline-classed elements, authorName fields, and inline
// schema.org Person objects.
func FromTags(doc string) []domain.Name {
	found, _ := scanTags(doc)

	return found
}

func scanTags(doc string) ([]domain.Name, error) {
	var (
		found   []domain.Name
		groupID string
		inner   error
	)

	err := eachMatch(bylineTag, doc, func(m *regexp2.Match) bool {
		id := group(m, "ida", "idb", "idc")
		if groupID != "" && id != groupID {
			return false
		}

		if group(m, "tag") == "" {
			if ns := ToNames(html.UnescapeString(group(m, "resb", "resc"))); len(ns) > 0 {
				found = append(found, ns...)
				groupID = id
			}

			return true
		}

		body := group(m, "resa")
		if ns := ToNames(html.UnescapeString(stripTags(body))); len(ns) > 0 {
			found = append(found, ns...)
			groupID = id

			return true
		}

		// .byline > .author
		inner = eachMatch(nestedAuthor, body, func(n *regexp2.Match) bool {
			found = append(found, ToNames(html.UnescapeString(group(n, "result")))...)

			return true
		})

		return inner == nil && len(found) == 0
	})

	return found, errors.Join(err, inner)
}

// FromText looks for a "By ..." line in the tag-stripped document.
func FromText(doc string) []domain.Name {
	found, _ := scanText(doc)

	return found
}

func scanText(doc string) ([]domain.Name, error) {
	m, err := bylineText.FindStringMatch(stripTags(doc))
	if err != nil || m == nil {
		return nil, matchErr(err)
	}

	return ToNames(group(m, "byline")), nil
}

// Candidates lists every raw byline span each strategy would consider, in
// document order per strategy. It does no name parsing and applies no group
// id rule.
func Candidates(doc string) []Candidate {
	var out []Candidate

	_ = eachMatch(metaAuthor, doc, func(m *regexp2.Match) bool {
		out = append(out, Candidate{
			Text:     html.UnescapeString(group(m, "resa", "resb")),
			Strategy: StrategyMeta,
			GroupID:  group(m, "ida", "idb"),
		})

		return true
	})

	_ = eachMatch(bylineTag, doc, func(m *regexp2.Match) bool {
		text := group(m, "resb", "resc")
		if group(m, "tag") != "" {
			text = stripTags(group(m, "resa"))
		}

		out = append(out, Candidate{
			Text:     html.UnescapeString(text),
			Strategy: StrategyTag,
			GroupID:  group(m, "ida", "idb", "idc"),
		})

		return true
	})

	if m, err := bylineText.FindStringMatch(stripTags(doc)); err == nil && m != nil {
		out = append(out, Candidate{Text: group(m, "byline"), Strategy: StrategyText})
	}

	return out
}

func dedupe(in []domain.Name) []domain.Name {
	out := make([]domain.Name, 0, len(in))

outer:
	for _, n := range in {
		for _, seen := range out {
			if names.Equal(n, seen) {
				continue outer
			}
		}

		out = append(out, n)
	}

	return out
}
