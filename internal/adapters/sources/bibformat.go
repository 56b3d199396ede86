package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

// BibFormat fetches a BibTeX rendering of a book from a citation formatter
// site that shows the entry in a <textarea>.
type BibFormat struct {
	BaseAdapter
	parser ports.BibTeXParser
}

// NewBibFormat creates the bibliographic-format source.
func NewBibFormat(client *clients.Client, name string, parser ports.BibTeXParser) *BibFormat {
	if parser == nil {
		panic("sources: BibTeX parser is required")
	}

	return &BibFormat{BaseAdapter: NewBaseAdapter(client, name, 0), parser: parser}
}

// LookupISBN implements ports.ISBNSource.
func (b *BibFormat) LookupISBN(ctx context.Context, isbn string) (*domain.PartialRecord, error) {
	path := "/isbn/" + url.PathEscape(isbn) + "/bibtex"

	body, err := b.fetch(ctx, path, "LookupISBN", isbn)
	if err != nil {
		return nil, err
	}

	raw, ok := textarea(string(body))
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, domain.NewNotFoundError(b.Name(), isbn)
	}

	rec, err := b.parser.ParseBibTeX(raw)
	if err != nil {
		return nil, domain.NewUnavailableError(b.Name(), fmt.Sprintf("parsing BibTeX: %v", err))
	}

	rec.Source = b.Name()
	if rec.ISBN == "" {
		rec.ISBN = isbn
	}

	if rec.Type == "" {
		rec.Type = domain.TypeBook
	}

	return rec, nil
}
