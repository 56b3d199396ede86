package domain

import "slices"

// RecordType is the citation type of a record.
type RecordType string

// Record types produced by the resolvers.
const (
	TypeBook    RecordType = "book"
	TypeJournal RecordType = "journal"
	TypeWeb     RecordType = "web"
)

// Name is a personal or organizational name.
// An empty First marks an organization or an unparsed entity.
type Name struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last"`
}

// IsOrganization reports whether the name has no personal first name.
func (n Name) IsOrganization() bool {
	return n.First == ""
}

// String renders the name as "First Last".
func (n Name) String() string {
	if n.First == "" {
		return n.Last
	}

	return n.First + " " + n.Last
}

// Contributor is a name with a free-text role, such as "illustrator".
type Contributor struct {
	Name
	Role string `json:"role"`
}

// Fields is the fixed set of bibliographic fields. Empty strings and nil
// slices mean "absent".
type Fields struct {
	Type        RecordType    `json:"type,omitempty"`
	ISBN        string        `json:"isbn,omitempty"`
	OCLC        string        `json:"oclc,omitempty"`
	DOI         string        `json:"doi,omitempty"`
	URL         string        `json:"url,omitempty"`
	Title       string        `json:"title,omitempty"`
	Authors     []Name        `json:"authors,omitempty"`
	Translators []Name        `json:"translators,omitempty"`
	Editors     []Name        `json:"editors,omitempty"`
	Others      []Contributor `json:"others,omitempty"`
	Publisher   string        `json:"publisher,omitempty"`
	Location    string        `json:"location,omitempty"`
	Journal     string        `json:"journal,omitempty"`
	Website     string        `json:"website,omitempty"`
	Series      string        `json:"series,omitempty"`
	Volume      string        `json:"volume,omitempty"`
	Issue       string        `json:"issue,omitempty"`
	Pages       string        `json:"pages,omitempty"`
	Year        string        `json:"year,omitempty"`
	Month       string        `json:"month,omitempty"`
	Day         string        `json:"day,omitempty"`
	Language    string        `json:"language,omitempty"`
}

// Clone returns a deep copy, so the copy shares no slices with f.
func (f Fields) Clone() Fields {
	f.Authors = slices.Clone(f.Authors)
	f.Translators = slices.Clone(f.Translators)
	f.Editors = slices.Clone(f.Editors)
	f.Others = slices.Clone(f.Others)

	return f
}

// PartialRecord is what a single source returns.
type PartialRecord struct {
	Source string
	Fields
}

// Record is the reconciled result handed to callers. Each call returns a
// fresh value owned by the caller.
type Record struct {
	Fields
	DateFormat string   `json:"date_format"`
	Sources    []string `json:"sources,omitempty"`
}

// NewRecord builds a Record from the winning partial record.
func NewRecord(p *PartialRecord, dateFormat string) *Record {
	r := &Record{
		Fields:     p.Clone(),
		DateFormat: dateFormat,
	}
	if p.Source != "" {
		r.Sources = []string{p.Source}
	}

	return r
}

// AddSource notes that a source contributed to the record.
func (r *Record) AddSource(name string) {
	if name != "" && !slices.Contains(r.Sources, name) {
		r.Sources = append(r.Sources, name)
	}
}

// UserMessage is the three-line notice returned instead of a record when the
// caller supplied an identifier the authoritative source rejects.
type UserMessage struct {
	Title  string `json:"title"`
	Hint   string `json:"hint"`
	Detail string `json:"detail"`
}

// Lines returns the message as a three-element tuple.
func (m UserMessage) Lines() [3]string {
	return [3]string{m.Title, m.Hint, m.Detail}
}

// InvalidOCLCMessage is the notice for an OCLC number the catalog does not know.
func InvalidOCLCMessage(oclc string) *UserMessage {
	return &UserMessage{
		Title: "Error processing OCLC number: " + oclc,
		Hint:  "Perhaps you entered an invalid OCLC number?",
	}
}

// Page is a fetched web page: the metadata found in its head plus the raw
// HTML, kept for byline extraction.
type Page struct {
	PartialRecord
	HTML string
}
