package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

const cslJSON = "application/vnd.citationstyles.csl+json"

// DOI resolves DOIs through content negotiation on the DOI proxy.
type DOI struct {
	BaseAdapter
}

// NewDOI creates the DOI source.
func NewDOI(client *clients.Client, name string) *DOI {
	return &DOI{BaseAdapter: NewBaseAdapter(client, name, 0)}
}

// flexString accepts a JSON string, number or array of strings. Arrays
// keep their first element.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	*f = flexString(text(v))

	return nil
}

type cslName struct {
	Given   string `json:"given"`
	Family  string `json:"family"`
	Literal string `json:"literal"`
}

type cslItem struct {
	Type           string     `json:"type"`
	Title          flexString `json:"title"`
	ContainerTitle flexString `json:"container-title"`
	Author         []cslName  `json:"author"`
	Editor         []cslName  `json:"editor"`
	Translator     []cslName  `json:"translator"`
	Issued         cslDate    `json:"issued"`
	Volume         flexString `json:"volume"`
	Issue          flexString `json:"issue"`
	Page           flexString `json:"page"`
	Publisher      flexString `json:"publisher"`
	PublisherPlace flexString `json:"publisher-place"`
	ISBN           flexString `json:"ISBN"`
	DOI            flexString `json:"DOI"`
	URL            flexString `json:"URL"`
	Language       flexString `json:"language"`
	Collection     flexString `json:"collection-title"`
}

type cslDate struct {
	DateParts [][]json.Number `json:"date-parts"`
}

func (d cslDate) parts() (year, month, day string) {
	if len(d.DateParts) == 0 {
		return "", "", ""
	}

	p := d.DateParts[0]
	get := func(i int, width int) string {
		if i >= len(p) {
			return ""
		}

		n, err := strconv.Atoi(p[i].String())
		if err != nil || n <= 0 {
			return ""
		}

		s := strconv.Itoa(n)
		for len(s) < width {
			s = "0" + s
		}

		return s
	}

	return get(0, 4), get(1, 2), get(2, 2)
}

// LookupDOI implements ports.DOISource.
func (d *DOI) LookupDOI(ctx context.Context, doi string) (*domain.PartialRecord, error) {
	doi = strings.TrimSpace(doi)
	path := (&url.URL{Path: "/" + doi}).EscapedPath()

	body, err := d.fetch(ctx, path, "LookupDOI", doi, clients.WithAccept(cslJSON))
	if err != nil {
		return nil, err
	}

	item, err := decodeJSON[cslItem](body, d.Name())
	if err != nil {
		return nil, err
	}

	if item.Title == "" {
		return nil, domain.NewNotFoundError(d.Name(), doi)
	}

	rec := &domain.PartialRecord{Source: d.Name()}
	rec.Type = cslType(item.Type)
	rec.DOI = string(item.DOI)
	rec.URL = string(item.URL)
	rec.Title = string(item.Title)
	rec.Authors = cslNames(item.Author)
	rec.Editors = cslNames(item.Editor)
	rec.Translators = cslNames(item.Translator)
	rec.Volume = string(item.Volume)
	rec.Issue = string(item.Issue)
	rec.Pages = string(item.Page)
	rec.Publisher = string(item.Publisher)
	rec.Location = string(item.PublisherPlace)
	rec.ISBN = string(item.ISBN)
	rec.Language = string(item.Language)
	rec.Year, rec.Month, rec.Day = item.Issued.parts()

	switch rec.Type {
	case domain.TypeJournal:
		rec.Journal = string(item.ContainerTitle)
	case domain.TypeBook:
		rec.Series = string(item.Collection)
	default:
		rec.Website = string(item.ContainerTitle)
	}

	if rec.DOI == "" {
		rec.DOI = doi
	}

	return rec, nil
}

func cslType(t string) domain.RecordType {
	switch t {
	case "book", "chapter", "monograph", "edited-book", "reference-book":
		return domain.TypeBook
	case "webpage", "post", "post-weblog":
		return domain.TypeWeb
	default:
		return domain.TypeJournal
	}
}

func cslNames(in []cslName) []domain.Name {
	var out []domain.Name

	for _, n := range in {
		switch {
		case n.Family != "":
			out = append(out, domain.Name{First: names.Clean(n.Given), Last: names.Clean(n.Family)})
		case n.Literal != "":
			out = append(out, names.Organization(n.Literal))
		}
	}

	return out
}
