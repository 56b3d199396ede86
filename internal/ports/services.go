// Package ports defines the contracts between the resolution engine and the
// adapters that talk to bibliographic sources, parse citation formats and
// detect languages.
//
// Source ports follow one error contract:
//   - a *domain.PartialRecord on success
//   - *domain.NotFoundError when the source answered but has no record
//   - *domain.UnavailableError for transport, status or decoding failures
//
// Callers that merge sources treat both errors as "no data".
package ports

import (
	"context"

	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// Source outcomes reported through OutcomeRecorder.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

// ISBNSource looks a book up by ISBN.
type ISBNSource interface {
	Name() string
	LookupISBN(ctx context.Context, isbn string) (*domain.PartialRecord, error)
}

// OCLCFinder recovers the OCLC number of a book from its ISBN.
// Returns *domain.NotFoundError when the catalog has no OCLC entry.
type OCLCFinder interface {
	Name() string
	FindOCLC(ctx context.Context, isbn string) (string, error)
}

// OCLCSource looks a record up by OCLC number. An OCLC number the catalog
// rejects yields *domain.InvalidIdentifierError.
type OCLCSource interface {
	Name() string
	LookupOCLC(ctx context.Context, oclc string) (*domain.PartialRecord, error)
}

// DOISource resolves a DOI to article metadata.
type DOISource interface {
	Name() string
	LookupDOI(ctx context.Context, doi string) (*domain.PartialRecord, error)
}

// PageSource fetches a web article.
type PageSource interface {
	Name() string
	FetchPage(ctx context.Context, url string) (*domain.Page, error)
}

// BibTeXParser converts the first BibTeX entry in raw to a partial record.
type BibTeXParser interface {
	ParseBibTeX(raw string) (*domain.PartialRecord, error)
}

// RISParser converts the first RIS record in raw to a partial record.
type RISParser interface {
	ParseRIS(raw string) (*domain.PartialRecord, error)
}

// LanguageDetector returns ISO 639-1 codes ranked by likelihood, most likely
// first. An empty result means the language could not be determined.
type LanguageDetector interface {
	Detect(text string) []string
}

// OutcomeRecorder counts source answers, one of the Outcome constants per call.
type OutcomeRecorder interface {
	RecordOutcome(source, outcome string)
}

// NopOutcomes discards outcomes.
type NopOutcomes struct{}

// RecordOutcome does nothing.
func (NopOutcomes) RecordOutcome(string, string) {}
