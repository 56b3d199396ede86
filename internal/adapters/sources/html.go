package sources

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageHead is the metadata scraped from an HTML document.
type pageHead struct {
	Title string
	Lang  string

	// Meta maps lower-cased name, property or itemprop to the first
	// non-empty content seen for it.
	Meta map[string]string

	// LDJSON holds the bodies of application/ld+json scripts in order.
	LDJSON []string
}

func (h *pageHead) meta(keys ...string) string {
	for _, k := range keys {
		if v := h.Meta[k]; v != "" {
			return v
		}
	}

	return ""
}

// scanHead tokenizes doc and collects title, meta tags, html lang and
// JSON-LD blocks. Malformed markup is tolerated.
func scanHead(doc string) *pageHead {
	head := &pageHead{Meta: make(map[string]string)}
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		inTitle  bool
		inLDJSON bool
		text     strings.Builder
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return head

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()

			switch tok.DataAtom {
			case atom.Html:
				if head.Lang == "" {
					head.Lang = strings.TrimSpace(attrValue(tok, "lang"))
				}
			case atom.Title:
				inTitle = head.Title == ""
				text.Reset()
			case atom.Script:
				inLDJSON = strings.EqualFold(attrValue(tok, "type"), "application/ld+json")
				text.Reset()
			case atom.Meta:
				addMeta(head, tok)
			}

		case html.TextToken:
			if inTitle || inLDJSON {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			tok := z.Token()

			switch {
			case tok.DataAtom == atom.Title && inTitle:
				head.Title = strings.TrimSpace(text.String())
				inTitle = false
			case tok.DataAtom == atom.Script && inLDJSON:
				head.LDJSON = append(head.LDJSON, text.String())
				inLDJSON = false
			}
		}
	}
}

func addMeta(head *pageHead, tok html.Token) {
	content := strings.TrimSpace(attrValue(tok, "content"))
	if content == "" {
		return
	}

	for _, key := range []string{"name", "property", "itemprop"} {
		k := strings.ToLower(strings.TrimSpace(attrValue(tok, key)))
		if k == "" {
			continue
		}

		if _, seen := head.Meta[k]; !seen {
			head.Meta[k] = content
		}
	}
}

// textarea returns the unescaped text of the first <textarea>.
func textarea(doc string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		inside bool
		text   strings.Builder
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return text.String(), inside

		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Textarea {
				inside = true
			}

		case html.TextToken:
			if inside {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if inside && atom.Lookup(name) == atom.Textarea {
				return text.String(), true
			}
		}
	}
}

func attrValue(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}

	return ""
}
