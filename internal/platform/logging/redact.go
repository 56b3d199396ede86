package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// Source requests carry the operator contact in their user agents and,
// for some catalogs, an API key. Those must not reach the logs.
var (
	bearerPattern = regexp.MustCompile(`(?i)^bearer\s+.+$`)
	jwtPattern    = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	mailtoPattern = regexp.MustCompile(`(?i)mailto:[^\s)]+`)
)

var sensitiveFields = []string{
	"api_user_agent",
	"contact_email",
	"authorization",
	"cookie",
	"password",
	"token",
	"api_key",
	"apikey",
	"wskey",
}

// DefaultRedactOptions returns the masq options applied to every handler.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+4)
	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(mailtoPattern),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr hook that redacts sensitive
// attributes. opts extend the defaults.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
