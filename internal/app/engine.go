// Package app holds the resolution use cases. It coordinates the domain
// logic and the bibliographic sources through the ports interfaces and
// knows nothing about HTTP or the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/bibresolve/internal/app/memo"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/domain/byline"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

// DefaultDateFormat is used when neither the caller nor the config names one.
const DefaultDateFormat = "%Y-%m-%d"

// Engine is the entry point for every resolution. It is safe for
// concurrent use; each call returns a record owned by the caller.
type Engine struct {
	reconciler *Reconciler
	oclc       ports.OCLCSource
	doi        ports.DOISource
	pages      ports.PageSource
	lang       ports.LanguageDetector
	outcomes   ports.OutcomeRecorder
	dateFormat string
	batchLimit int
	tracer     trace.Tracer
}

// EngineConfig wires the engine. Reconciler is required. A nil OCLC, DOI
// or Pages source makes the matching operation report the source as
// unavailable.
type EngineConfig struct {
	Reconciler        *Reconciler
	OCLC              ports.OCLCSource
	DOI               ports.DOISource
	Pages             ports.PageSource
	Language          ports.LanguageDetector
	Outcomes          ports.OutcomeRecorder
	DefaultDateFormat string
	BatchLimit        int
}

// NewEngine creates an engine.
// Panics if Reconciler is nil.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Reconciler == nil {
		panic("app: reconciler is required")
	}

	e := &Engine{
		reconciler: cfg.Reconciler,
		oclc:       cfg.OCLC,
		doi:        cfg.DOI,
		pages:      cfg.Pages,
		lang:       cfg.Language,
		outcomes:   cfg.Outcomes,
		dateFormat: cfg.DefaultDateFormat,
		batchLimit: cfg.BatchLimit,
		tracer:     otel.Tracer(instrumentationName),
	}

	if e.outcomes == nil {
		e.outcomes = ports.NopOutcomes{}
	}

	if e.dateFormat == "" {
		e.dateFormat = DefaultDateFormat
	}

	if e.batchLimit < 1 {
		e.batchLimit = 1
	}

	return e
}

func (e *Engine) format(dateFormat string) string {
	if dateFormat == "" {
		return e.dateFormat
	}

	return dateFormat
}

// ResolveByISBN finds an ISBN in container (or takes container verbatim
// when pure is set) and reconciles the sources for it.
//
// Errors: *domain.IdentifierNotFoundError when container holds no ISBN,
// *domain.RecordNotFoundError when no source knows it.
func (e *Engine) ResolveByISBN(ctx context.Context, container string, pure bool, dateFormat string) (*domain.Record, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ResolveByISBN")
	defer span.End()

	id, err := domain.ExtractISBN(container, pure)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("isbn", id.Value), attribute.String("kind", string(id.Kind)))

	rec, err := e.reconciler.Reconcile(ctx, id.Value)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec.DateFormat = e.format(dateFormat)

	return rec, nil
}

// ResolveByOCLC looks an OCLC number up in the authoritative catalog.
//
// When the catalog rejects the number the result is a UserMessage rather
// than an error; the record is nil in that case. Other failures are
// returned as errors.
func (e *Engine) ResolveByOCLC(ctx context.Context, oclc, dateFormat string) (*domain.Record, *domain.UserMessage, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ResolveByOCLC", trace.WithAttributes(attribute.String("oclc", oclc)))
	defer span.End()

	oclc = strings.TrimSpace(oclc)
	if oclc == "" {
		return nil, nil, domain.NewValidationError("oclc", "is required")
	}

	if e.oclc == nil {
		return nil, nil, domain.NewUnavailableError("oclc", "no catalog configured")
	}

	ctx = logging.WithIdentifier(ctx, string(domain.KindOCLC), oclc)

	p, err := e.oclc.LookupOCLC(ctx, oclc)
	recordOutcome(ctx, e.outcomes, e.oclc.Name(), err)

	if err != nil {
		if domain.IsInvalidIdentifier(err) {
			span.SetAttributes(attribute.Bool("rejected", true))
			return nil, domain.InvalidOCLCMessage(oclc), nil
		}

		span.SetStatus(codes.Error, err.Error())

		return nil, nil, err
	}

	rec := domain.NewRecord(p, e.format(dateFormat))
	if rec.OCLC == "" {
		rec.OCLC = oclc
	}

	e.fillLanguage(rec)

	return rec, nil, nil
}

// ResolveByDOI looks a DOI up through content negotiation.
func (e *Engine) ResolveByDOI(ctx context.Context, doi, dateFormat string) (*domain.Record, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ResolveByDOI", trace.WithAttributes(attribute.String("doi", doi)))
	defer span.End()

	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, domain.NewValidationError("doi", "is required")
	}

	if e.doi == nil {
		return nil, domain.NewUnavailableError("doi", "no resolver configured")
	}

	ctx = logging.WithIdentifier(ctx, string(domain.KindDOI), doi)

	p, err := e.doi.LookupDOI(ctx, doi)
	recordOutcome(ctx, e.outcomes, e.doi.Name(), err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec := domain.NewRecord(p, e.format(dateFormat))
	e.fillLanguage(rec)

	return rec, nil
}

// ResolveByURL fetches a web page and builds a record from its metadata.
// Authors missing from the metadata are taken from the page byline.
func (e *Engine) ResolveByURL(ctx context.Context, url, dateFormat string) (*domain.Record, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ResolveByURL", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	if e.pages == nil {
		return nil, domain.NewUnavailableError("web", "no page fetcher configured")
	}

	ctx = logging.WithIdentifier(ctx, string(domain.KindURL), url)

	page, err := e.pages.FetchPage(ctx, url)
	recordOutcome(ctx, e.outcomes, e.pages.Name(), err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec := domain.NewRecord(&page.PartialRecord, e.format(dateFormat))
	if len(rec.Authors) == 0 {
		rec.Authors = e.authors(ctx, page.HTML)
	}

	e.fillLanguage(rec)

	return rec, nil
}

// ExtractAuthors finds the byline of an HTML document. A nil result means
// the authors are unknown.
func (e *Engine) ExtractAuthors(html string) []domain.Name {
	return e.authors(context.Background(), html)
}

func (e *Engine) authors(ctx context.Context, html string) []domain.Name {
	found, err := byline.Scan(html)
	if err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "byline strategy cut short",
			slog.Int("names", len(found)),
			slog.Any("error", err),
		)
	}

	return found
}

// Resolve classifies raw and dispatches to the matching operation.
func (e *Engine) Resolve(ctx context.Context, raw, dateFormat string) (*domain.Record, *domain.UserMessage, error) {
	id, err := domain.ParseIdentifier(raw)
	if err != nil {
		return nil, nil, err
	}

	logging.FromContext(ctx).DebugContext(ctx, "resolving identifier",
		slog.String("kind", string(id.Kind)),
		slog.String("value", id.Value),
	)

	switch id.Kind {
	case domain.KindISBN10, domain.KindISBN13:
		rec, err := e.ResolveByISBN(ctx, id.Value, true, dateFormat)
		return rec, nil, err
	case domain.KindOCLC:
		return e.ResolveByOCLC(ctx, id.Value, dateFormat)
	case domain.KindDOI:
		rec, err := e.ResolveByDOI(ctx, id.Value, dateFormat)
		return rec, nil, err
	case domain.KindURL:
		rec, err := e.ResolveByURL(ctx, id.Value, dateFormat)
		return rec, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported identifier kind %q", id.Kind)
	}
}

// BatchItem is the outcome of one identifier in a batch.
type BatchItem struct {
	Input   string
	Record  *domain.Record
	Message *domain.UserMessage
	Err     error
}

// ResolveBatch resolves every input with bounded parallelism. Results keep
// the input order. Repeated inputs are resolved once and share a result.
func (e *Engine) ResolveBatch(ctx context.Context, inputs []string, dateFormat string) []BatchItem {
	ctx, span := e.tracer.Start(ctx, "Engine.ResolveBatch", trace.WithAttributes(attribute.Int("size", len(inputs))))
	defer span.End()

	m := memo.FromContext(ctx)
	if m == nil {
		m = memo.New()
		ctx = memo.WithContext(ctx, m)
	}

	type resolved struct {
		rec *domain.Record
		msg *domain.UserMessage
	}

	results := Batch(ctx, e.batchLimit, inputs, func(ctx context.Context, raw string) (resolved, error) {
		key := strings.TrimSpace(raw)

		return memo.GetOrFetch(ctx, m, key, func(ctx context.Context) (resolved, error) {
			rec, msg, err := e.Resolve(ctx, raw, dateFormat)
			return resolved{rec: rec, msg: msg}, err
		})
	})

	items := make([]BatchItem, len(inputs))
	failed := 0

	for i, r := range results {
		items[i] = BatchItem{Input: inputs[i], Err: r.Err}

		if r.Err != nil {
			failed++
			continue
		}

		items[i].Message = r.Value.msg
		if r.Value.rec != nil {
			items[i].Record = cloneRecord(r.Value.rec)
		}
	}

	span.SetAttributes(attribute.Int("failed", failed))

	return items
}

// cloneRecord copies a shared memoized record so each batch item owns its slices.
func cloneRecord(r *domain.Record) *domain.Record {
	c := *r
	c.Fields = r.Clone()
	c.Sources = append([]string(nil), r.Sources...)

	return &c
}

func (e *Engine) fillLanguage(rec *domain.Record) {
	detectLanguage(e.lang, rec)
}

// IsUserFacing reports whether err is a caller mistake rather than a
// resolution failure.
func IsUserFacing(err error) bool {
	var notFound *domain.IdentifierNotFoundError

	return errors.As(err, &notFound) || domain.IsValidation(err)
}
