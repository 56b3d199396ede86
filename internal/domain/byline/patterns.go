package byline

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds backtracking on hostile or very large documents.
const matchTimeout = 2 * time.Second

// ErrMatchTimeout reports a strategy abandoned at matchTimeout. Names found
// before the limit are still returned.
var ErrMatchTimeout = errors.New("byline: match time limit exceeded")

// A byline name is two or three words.
const namePattern = `(?>\w[\w.-]+ )(?>\w[\w.-]+)(?> \w[\w.-]+)?`

// Up to four names joined by ", ", " and " or ", and ".
const (
	nameSep      = `(?:, |,? +and )`
	bylineSyntax = `\s*By\s+` + namePattern +
		`(?:` + nameSep + namePattern +
		`(?:` + nameSep + namePattern +
		`(?:` + nameSep + namePattern + `)?)?)?\s*`
)

const authorAttr = `(?:name|property)\s*=\s*(?<%[1]s>["'])(?>a(?>rticle:author|uthor)|citation_authors?|og:author)\k<%[1]s>`

var (
	metaAuthor = compile(
		`<meta\s[^>]*?(?:` +
			`(?<ida>` + attr("qa") + `)\s[^>]*?content=(?<qb>["'])\s*(?<resa>.*?)\s*\k<qb>` +
			`|` +
			`content=(?<qc>["'])\s*(?<resb>.*?)\s*\k<qc>\s[^>]*?(?<idb>` + attr("qd") + `)` +
			`)`,
		regexp2.IgnoreCase,
	)

	bylineTag = compile(
		`(?>`+
			`<(?<tag>[a-z][a-z0-9]*)\s+[^>]*?`+
			`(?<ida>(?>class|id|rel)=(?<qa>["'])`+
			`(?>author(?>_byline|Inline|-title)?|by(?>line(?>Author|-name)?|_line(?:_date)?)|meta-author|story-byline))`+
			`\k<qa>[^>]*?>(?<resa>[\s\S]*?)</\k<tag>(?>[^>]*)>`+
			`|`+
			`(?<idb>authorName["']?\s*:\s*["'])(?<resb>[^"'>\n]+)["']`+
			`|`+
			`(?<qc>["'])author\k<qc>\s*:\s*\{\s*\k<qc>@type\k<qc>\s*:\s*\k<qc>(?<idc>Person)\k<qc>`+
			`\s*,\s*\k<qc>name\k<qc>\s*:\s*\k<qc>(?<resc>.*?)\k<qc>`+
			`)`,
		regexp2.IgnoreCase,
	)

	nestedAuthor = compile(
		`<[a-z][^>]*?class=(?<q>["'])author\k<q>[^>]*?>(?<result>[^<>]*)`,
		regexp2.IgnoreCase,
	)

	bylineText = compile(
		`(?:^|[\n|>])(?<byline>`+bylineSyntax+`)(?:\n|$)`,
		regexp2.IgnoreCase,
	)

	stopwords = compile(
		`\b(?>Administrator|By|Correspondent|Editors?|News|Office|People|Reporter|Staff|Writer|سایت)\b`+
			`|\.(?>com|ir)\b`+
			`|www\.`,
		regexp2.IgnoreCase,
	)
)

// RE2 is enough for the rest.
var (
	tags             = regexp.MustCompile(`(?i)</?[a-z][^>]*>`)
	fourDigits       = regexp.MustCompile(`\d\d\d\d`)
	normalizeAnds    = regexp.MustCompile(`(?i)\s+and\s+`)
	normalizeCommas  = regexp.MustCompile(`\s*,\s+`)
	byPrefix         = regexp.MustCompile(`(?i)^(?:[\s\S]*?\bby\s+)?([^\r\n]+)[\s\S]*`)
	andOrCommaSuffix = regexp.MustCompile(`(?i)(?: and|,)?\s*$`)
	andOrCommaSplit  = regexp.MustCompile(`(?i), and | and |, |;`)
	andSplit         = regexp.MustCompile(`(?i), and | and |;`)

	anyDate = regexp.MustCompile(`(?i)` +
		`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b` +
		`|\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b` +
		`|\b` + months + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b` +
		`|\b\d{1,2}(?:st|nd|rd|th)?\s+` + months + `\.?,?\s+\d{4}\b` +
		`|\b` + months + `\.?,?\s+\d{4}\b`)
)

const months = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

func attr(quote string) string {
	return fmt.Sprintf(authorAttr, quote)
}

func compile(pattern string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, opts)
	re.MatchTimeout = matchTimeout

	return re
}

// eachMatch calls fn for successive matches until fn returns false. A match
// error ends the scan and is returned wrapped in ErrMatchTimeout.
func eachMatch(re *regexp2.Regexp, s string, fn func(*regexp2.Match) bool) error {
	m, err := re.FindStringMatch(s)
	for m != nil && err == nil {
		if !fn(m) {
			return nil
		}

		m, err = re.FindNextMatch(m)
	}

	return matchErr(err)
}

func matchErr(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrMatchTimeout, err)
}

// group returns the text of the first named group that participated in m.
func group(m *regexp2.Match, names ...string) string {
	for _, name := range names {
		if g := m.GroupByName(name); g != nil && len(g.Captures) > 0 {
			return g.String()
		}
	}

	return ""
}

func stripTags(s string) string {
	return tags.ReplaceAllString(s, "")
}
