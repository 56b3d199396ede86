package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

// WorldCat exports catalog records by OCLC number in RIS form.
type WorldCat struct {
	BaseAdapter
	parser ports.RISParser
}

// NewWorldCat creates the authoritative-catalog source.
func NewWorldCat(client *clients.Client, name string, parser ports.RISParser) *WorldCat {
	if parser == nil {
		panic("sources: RIS parser is required")
	}

	return &WorldCat{BaseAdapter: NewBaseAdapter(client, name, 0), parser: parser}
}

var endnoteQuery = url.Values{
	"page":   {"endnote"},
	"client": {"worldcat.org-detailed_record"},
}

// LookupOCLC implements ports.OCLCSource. The catalog answers unknown
// numbers with an HTML page, whatever the status, which is reported as
// *domain.InvalidIdentifierError.
func (w *WorldCat) LookupOCLC(ctx context.Context, oclc string) (*domain.PartialRecord, error) {
	path := "/oclc/" + url.PathEscape(oclc)

	resp, err := w.fetchAny(ctx, path, "LookupOCLC", oclc, clients.WithQuery(endnoteQuery))
	if err != nil {
		return nil, err
	}

	body := string(resp.body)
	if strings.Contains(body, "<html") {
		return nil, domain.NewInvalidIdentifierError(string(domain.KindOCLC), oclc)
	}

	if resp.status >= http.StatusBadRequest {
		return nil, mapStatusCode(resp.status, w.Name(), "LookupOCLC", oclc)
	}

	rec, err := w.parser.ParseRIS(body)
	if err != nil {
		return nil, domain.NewUnavailableError(w.Name(), fmt.Sprintf("parsing RIS: %v", err))
	}

	rec.Source = w.Name()
	rec.OCLC = oclc
	rec.Title = strings.TrimRight(rec.Title, ".")

	for i, a := range rec.Authors {
		rec.Authors[i] = domain.Name{First: trimDot(a.First), Last: trimDot(a.Last)}
	}

	if rec.Type == "" {
		rec.Type = domain.TypeBook
	}

	return rec, nil
}

// trimDot drops the trailing period the catalog appends to name parts.
// All-caps parts are initials or acronyms and are left alone.
func trimDot(s string) string {
	if names.IsUpper(s) {
		return s
	}

	return strings.TrimRight(s, ".")
}
