//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jsamuelsen/bibresolve/internal/adapters/sources"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// upstream is one fake server standing in for every bibliographic source.
// Paths follow the real sites: the catalogs by ISBN, the citation API by
// ISBN and the library catalog by OCLC number.
type upstream struct {
	server *httptest.Server

	mu       sync.RWMutex
	meta     map[string]string
	bib      map[string]string
	citoid   map[string]string
	worldcat map[string]string
	down     map[string]bool

	requests atomic.Int64
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{
		meta:     map[string]string{},
		bib:      map[string]string{},
		citoid:   map[string]string{},
		worldcat: map[string]string{},
		down:     map[string]bool{},
	}
	u.server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.server.Close)

	return u
}

func (u *upstream) URL() string { return u.server.URL }

// addBook registers a book that both catalogs agree on.
func (u *upstream) addBook(isbn, title, author, oclc string) {
	u.addMeta(isbn, isbn, title, author)
	u.addBib(isbn, title, author)

	if oclc != "" {
		u.addOCLC(isbn, oclc, title, author)
	}
}

// addMeta makes the metadata catalog page for lookup describe pageISBN.
func (u *upstream) addMeta(lookup, pageISBN, title, author string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.meta[sources.CatalogPath(lookup)] = fmt.Sprintf(`<html lang="en"><head>
<script type="application/ld+json">{"@type":"Book","name":%q,"isbn":%q,"author":[{"@type":"Person","name":%q}],"datePublished":"2010-05-01"}</script>
</head><body></body></html>`, title, pageISBN, author)
}

func (u *upstream) addBib(isbn, title, author string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.bib[domain.CanonicalISBN(isbn)] = fmt.Sprintf(`<html><body><textarea name="bibtex">@Book{key,
 author = {%s},
 title = {%s},
 year = {2010},
 isbn = {%s}
}</textarea></body></html>`, author, title, domain.CanonicalISBN(isbn))
}

func (u *upstream) addOCLC(isbn, oclc, title, author string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.citoid[domain.CanonicalISBN(isbn)] = fmt.Sprintf(`[{"itemType":"book","title":%q,"oclc":%q}]`, title, oclc)
	u.worldcat[oclc] = fmt.Sprintf("TY  - BOOK\nAU  - %s.\nTI  - %s.\nPY  - 2010\nSN  - %s\nER  -\n",
		author, title, domain.CanonicalISBN(isbn))
}

// setDown makes a source answer 503. Names are meta, bib, citoid and worldcat.
func (u *upstream) setDown(source string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.down[source] = true
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.requests.Add(1)

	u.mu.RLock()
	defer u.mu.RUnlock()

	path := r.URL.Path

	var (
		source string
		body   string
		ok     bool
		ctype  = "text/html; charset=utf-8"
	)

	switch {
	case strings.HasPrefix(path, "/isbn/") && strings.HasSuffix(path, "/bibtex"):
		source = "bib"
		key := domain.CanonicalISBN(strings.TrimSuffix(strings.TrimPrefix(path, "/isbn/"), "/bibtex"))
		body, ok = u.bib[key]
	case strings.HasPrefix(path, "/isbn/"):
		source = "meta"
		body, ok = u.meta[path]
	case strings.HasPrefix(path, "/api/rest_v1/data/citation/mediawiki/"):
		source = "citoid"
		ctype = "application/json"
		body, ok = u.citoid[domain.CanonicalISBN(strings.TrimPrefix(path, "/api/rest_v1/data/citation/mediawiki/"))]
	case strings.HasPrefix(path, "/oclc/"):
		source = "worldcat"
		body, ok = u.worldcat[strings.TrimPrefix(path, "/oclc/")]

		if ok {
			ctype = "application/x-research-info-systems"
		} else {
			body, ok = "<html><body>Record not found</body></html>", true
		}
	}

	if u.down[source] {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write([]byte(body))
}
