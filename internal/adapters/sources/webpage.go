package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"

// WebPage fetches arbitrary article pages and reads the metadata in their
// head. The client must have no base URL; requests use absolute URLs.
type WebPage struct {
	BaseAdapter
}

// NewWebPage creates the web page source. maxBytes caps the page size.
func NewWebPage(client *clients.Client, name string, maxBytes int64) *WebPage {
	return &WebPage{BaseAdapter: NewBaseAdapter(client, name, maxBytes)}
}

// FetchPage implements ports.PageSource.
func (w *WebPage) FetchPage(ctx context.Context, rawURL string) (*domain.Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewInvalidIdentifierError(string(domain.KindURL), rawURL)
	}

	body, err := w.fetch(ctx, u.String(), "FetchPage", rawURL, clients.WithAccept(acceptHTML))
	if err != nil {
		return nil, err
	}

	doc := string(body)
	head := scanHead(doc)

	page := &domain.Page{HTML: doc}
	page.Source = w.Name()
	page.Type = domain.TypeWeb
	page.URL = u.String()
	page.Title = head.meta("og:title", "citation_title", "twitter:title", "dc.title")

	if page.Title == "" {
		page.Title = head.Title
	}

	page.Website = head.meta("og:site_name", "application-name")
	if page.Website == "" {
		page.Website = strings.TrimPrefix(u.Hostname(), "www.")
	}

	date := head.meta("article:published_time", "citation_publication_date", "citation_date")
	if date == "" {
		date = ldValue(head.LDJSON, "datePublished")
	}

	if date == "" {
		date = head.meta("date", "dc.date", "dc.date.issued")
	}

	page.Year, page.Month, page.Day = splitDate(strings.ReplaceAll(date, "/", "-"))

	page.Language = primaryLanguage(head.Lang)
	if page.Language == "" {
		page.Language = primaryLanguage(head.meta("language", "dc.language", "content-language", "og:locale"))
	}

	if journal := head.meta("citation_journal_title"); journal != "" {
		page.Type = domain.TypeJournal
		page.Journal = journal
		page.Website = ""
	}

	page.DOI = head.meta("citation_doi")
	page.ISBN = head.meta("citation_isbn")
	page.Publisher = head.meta("citation_publisher", "dc.publisher")
	page.Volume = head.meta("citation_volume")
	page.Issue = head.meta("citation_issue")
	page.Pages = pageRange(head.meta("citation_firstpage"), head.meta("citation_lastpage"))

	if page.Title == "" {
		return nil, domain.NewNotFoundError(w.Name(), rawURL)
	}

	return page, nil
}

// primaryLanguage reduces "en-US" or "fa_IR" to "en" or "fa".
func primaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}

	if len(tag) < 2 || len(tag) > 3 {
		return ""
	}

	return strings.ToLower(tag)
}

func pageRange(first, last string) string {
	switch {
	case first == "":
		return ""
	case last == "" || last == first:
		return first
	default:
		return first + "–" + last
	}
}

// ldValue returns the first string value of key found in the JSON-LD blocks.
func ldValue(blocks []string, key string) string {
	for _, block := range blocks {
		doc, err := decodeLD(block)
		if err != nil {
			continue
		}

		if v := findKey(doc, key, 0); v != "" {
			return v
		}
	}

	return ""
}

func findKey(v any, key string, depth int) string {
	if depth > 4 {
		return ""
	}

	switch t := v.(type) {
	case map[string]any:
		if s := text(t[key]); s != "" {
			return s
		}

		for _, child := range t {
			if s := findKey(child, key, depth+1); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range t {
			if s := findKey(child, key, depth+1); s != "" {
				return s
			}
		}
	}

	return ""
}
