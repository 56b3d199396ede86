// Package language guesses the language of short texts such as titles.
package language

import (
	"slices"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// minConfidence is the score below which a detection is ignored. Titles are
// short, so whatlanggo reports low confidence even when right.
const minConfidence = 0.1

// Detector implements ports.LanguageDetector with whatlanggo.
type Detector struct {
	options whatlanggo.Options
}

// Option configures a Detector.
type Option func(*Detector)

// WithAllowlist restricts detection to the given ISO 639-1 codes.
func WithAllowlist(codes ...string) Option {
	return func(d *Detector) {
		want := make(map[string]bool, len(codes))
		for _, code := range codes {
			want[strings.ToLower(code)] = true
		}

		allow := make(map[whatlanggo.Lang]bool, len(codes))

		for lang := range whatlanggo.Langs {
			if want[lang.Iso6391()] {
				allow[lang] = true
			}
		}

		if len(allow) > 0 {
			d.options.Whitelist = allow
		}
	}
}

// New creates a detector.
func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect returns ISO 639-1 codes ranked by likelihood, best first. It
// returns nil only when the text carries no letters at all. A low-confidence
// guess is still returned, after any script-based candidates.
func (d *Detector) Detect(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	info := whatlanggo.DetectWithOptions(text, d.options)
	if info.Script == nil {
		return nil
	}

	code := info.Lang.Iso6391()
	if code != "" && (info.Confidence >= minConfidence || info.IsReliable()) {
		return []string{code}
	}

	codes := fallback(info)
	if code != "" && !slices.Contains(codes, code) {
		codes = append(codes, code)
	}

	return codes
}

// fallback guesses from the script alone, which is enough for scripts that
// map to one dominant language.
func fallback(info whatlanggo.Info) []string {
	if info.Script == nil {
		return nil
	}

	switch whatlanggo.Scripts[info.Script] {
	case "Arabic":
		return []string{"fa", "ar"}
	case "Hebrew":
		return []string{"he"}
	case "Greek":
		return []string{"el"}
	case "Hangul":
		return []string{"ko"}
	case "Hiragana", "Katakana":
		return []string{"ja"}
	}

	return nil
}
