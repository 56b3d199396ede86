package sources

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/names"
)

// MetaCatalog looks books up on a product catalog that embeds schema.org
// JSON-LD Book objects in its pages.
//
// The catalog keys its pages by the ISBN-13 without the EAN prefix, so
// 978 and 979 books with the same remaining digits share a page. Callers
// compare the returned ISBN before trusting the record.
type MetaCatalog struct {
	BaseAdapter
}

// NewMetaCatalog creates the metadata-catalog source.
func NewMetaCatalog(client *clients.Client, name string) *MetaCatalog {
	return &MetaCatalog{BaseAdapter: NewBaseAdapter(client, name, 0)}
}

// CatalogPath returns the lookup path for isbn.
func CatalogPath(isbn string) string {
	digits := domain.CanonicalISBN(isbn)
	if digits == "" {
		digits = isbn
	}

	if len(digits) == 13 {
		digits = digits[3:]
	}

	return "/isbn/" + digits
}

// LookupISBN implements ports.ISBNSource.
func (m *MetaCatalog) LookupISBN(ctx context.Context, isbn string) (*domain.PartialRecord, error) {
	body, err := m.fetch(ctx, CatalogPath(isbn), "LookupISBN", isbn)
	if err != nil {
		return nil, err
	}

	head := scanHead(string(body))
	for _, block := range head.LDJSON {
		book := findBook(block)
		if book == nil {
			continue
		}

		rec := bookRecord(book)
		if rec.Title == "" {
			continue
		}

		rec.Source = m.Name()
		if rec.Language == "" {
			rec.Language = head.Lang
		}

		return rec, nil
	}

	return nil, domain.NewNotFoundError(m.Name(), isbn)
}

// findBook returns the first object typed Book in a JSON-LD block. It
// looks inside top-level arrays and @graph.
func findBook(block string) map[string]any {
	doc, err := decodeLD(block)
	if err != nil {
		return nil
	}

	return walkBook(doc, 0)
}

// decodeLD parses a JSON-LD block keeping numbers as written, so numeric
// identifiers and volume numbers are not reformatted.
func decodeLD(block string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(block)))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func walkBook(v any, depth int) map[string]any {
	if depth > 3 {
		return nil
	}

	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if book := walkBook(item, depth+1); book != nil {
				return book
			}
		}
	case map[string]any:
		if hasType(t, "Book") {
			return t
		}

		if graph, ok := t["@graph"]; ok {
			return walkBook(graph, depth+1)
		}
	}

	return nil
}

func hasType(obj map[string]any, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}

	return false
}

func bookRecord(book map[string]any) *domain.PartialRecord {
	rec := &domain.PartialRecord{}
	rec.Type = domain.TypeBook
	rec.Title = text(book["name"])
	rec.ISBN = text(book["isbn"])
	rec.Authors = people(book["author"])
	rec.Translators = people(book["translator"])
	rec.Editors = people(book["editor"])
	rec.Publisher = text(book["publisher"])
	rec.Location = text(book["locationCreated"])
	rec.Series = text(book["isPartOf"])
	rec.Language = language(book["inLanguage"])
	rec.Year, rec.Month, rec.Day = splitDate(text(book["datePublished"]))

	rec.Volume = text(book["volumeNumber"])
	if rec.Volume == "" {
		rec.Volume = text(book["bookEdition"])
	}

	if rec.Location == "" {
		if pub, ok := book["publisher"].(map[string]any); ok {
			rec.Location = text(pub["location"])
		}
	}

	addContributors(rec, book["contributor"])

	return rec
}

// addContributors files schema.org Role entries by roleName.
func addContributors(rec *domain.PartialRecord, v any) {
	for _, obj := range objects(v) {
		person := obj
		if inner, ok := obj["contributor"].(map[string]any); ok {
			person = inner
		}

		n, ok := personName(text(person["name"]))
		if !ok {
			continue
		}

		role := strings.TrimSpace(text(obj["roleName"]))

		switch strings.ToLower(role) {
		case "translator", "مترجم":
			rec.Translators = append(rec.Translators, n)
		case "editor", "ویراستار":
			rec.Editors = append(rec.Editors, n)
		case "author", "نویسنده":
			rec.Authors = append(rec.Authors, n)
		case "":
			rec.Others = append(rec.Others, domain.Contributor{Name: n, Role: "contributor"})
		default:
			rec.Others = append(rec.Others, domain.Contributor{Name: n, Role: role})
		}
	}
}

// text flattens a JSON-LD value to a string: plain values as is, objects by
// their name, arrays by their first element.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		if s := text(t["name"]); s != "" {
			return s
		}

		return text(t["@value"])
	case []any:
		if len(t) > 0 {
			return text(t[0])
		}
	}

	return ""
}

func language(v any) string {
	if obj, ok := v.(map[string]any); ok {
		if code := text(obj["alternateName"]); code != "" {
			return code
		}
	}

	return text(v)
}

func objects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}

		return out
	}

	return nil
}

func people(v any) []domain.Name {
	var raw []string

	switch t := v.(type) {
	case string:
		raw = append(raw, t)
	case map[string]any:
		raw = append(raw, text(t))
	case []any:
		for _, item := range t {
			raw = append(raw, text(item))
		}
	}

	var out []domain.Name

	for _, r := range raw {
		if n, ok := personName(r); ok {
			out = append(out, n)
		}
	}

	return out
}

// personName parses a name, falling back to an organization for strings
// the parser rejects.
func personName(raw string) (domain.Name, bool) {
	raw = names.Clean(raw)
	if raw == "" {
		return domain.Name{}, false
	}

	n, err := names.Parse(raw)
	if err != nil {
		return names.Organization(raw), true
	}

	return n, true
}
