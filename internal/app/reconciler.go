package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/bibresolve/internal/app"

// Reconciler merges the answers of the ISBN sources into one record.
type Reconciler struct {
	meta     ports.ISBNSource
	bib      ports.ISBNSource
	oclc     ports.OCLCFinder
	lang     ports.LanguageDetector
	outcomes ports.OutcomeRecorder
	tracer   trace.Tracer
}

// ReconcilerConfig wires the reconciler. MetaCatalog and BibFormat are
// required; OCLC and Language may be nil.
type ReconcilerConfig struct {
	MetaCatalog ports.ISBNSource
	BibFormat   ports.ISBNSource
	OCLC        ports.OCLCFinder
	Language    ports.LanguageDetector
	Outcomes    ports.OutcomeRecorder
}

// NewReconciler creates a reconciler.
// Panics if a required source is nil.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.MetaCatalog == nil || cfg.BibFormat == nil {
		panic("app: metadata-catalog and bibliographic-format sources are required")
	}

	outcomes := cfg.Outcomes
	if outcomes == nil {
		outcomes = ports.NopOutcomes{}
	}

	return &Reconciler{
		meta:     cfg.MetaCatalog,
		bib:      cfg.BibFormat,
		oclc:     cfg.OCLC,
		lang:     cfg.Language,
		outcomes: outcomes,
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Reconcile resolves isbn against every ISBN source and picks one record.
//
// The metadata catalog wins when both sources agree on the ISBN; when they
// disagree the catalog page is assumed to be a prefix collision and the
// BibTeX record wins. The OCLC number is added on top and never takes part
// in the choice. Source failures count as "no data" and are not returned.
func (r *Reconciler) Reconcile(ctx context.Context, isbn string) (*domain.Record, error) {
	ctx, span := r.tracer.Start(ctx, "Reconciler.Reconcile",
		trace.WithAttributes(attribute.String("isbn", isbn)),
	)
	defer span.End()

	ctx = logging.WithIdentifier(ctx, "isbn", isbn)

	metaTask := Go(ctx, func(ctx context.Context) (*domain.PartialRecord, error) {
		return r.meta.LookupISBN(ctx, isbn)
	})

	var oclcTask *Task[string]
	if r.oclc != nil {
		oclcTask = Go(ctx, func(ctx context.Context) (string, error) {
			return r.oclc.FindOCLC(ctx, isbn)
		})
	}

	bib, bibErr := r.bib.LookupISBN(ctx, isbn)
	r.observe(ctx, r.bib.Name(), bibErr)

	meta, metaErr := metaTask.Await()
	r.observe(ctx, r.meta.Name(), metaErr)

	chosen := choose(orNil(meta, metaErr), orNil(bib, bibErr))
	if chosen == nil {
		span.SetAttributes(attribute.Bool("found", false))
		logging.FromContext(ctx).InfoContext(ctx, "no source knows the isbn")

		return nil, domain.NewRecordNotFoundError(isbn)
	}

	rec := domain.NewRecord(chosen, "")
	span.SetAttributes(attribute.String("source", chosen.Source))

	if oclcTask != nil {
		oclc, err := oclcTask.Await()
		r.observe(ctx, r.oclc.Name(), err)

		if err == nil && oclc != "" {
			rec.OCLC = oclc
			rec.AddSource(r.oclc.Name())
		}
	}

	r.fillLanguage(rec)

	return rec, nil
}

// choose applies the source preference. Either argument may be nil.
func choose(meta, bib *domain.PartialRecord) *domain.PartialRecord {
	switch {
	case meta != nil && bib != nil:
		if domain.SameISBN(meta.ISBN, bib.ISBN) {
			return meta
		}

		return bib
	case meta != nil:
		return meta
	default:
		return bib
	}
}

func orNil(p *domain.PartialRecord, err error) *domain.PartialRecord {
	if err != nil {
		return nil
	}

	return p
}

func (r *Reconciler) fillLanguage(rec *domain.Record) {
	detectLanguage(r.lang, rec)
}

// detectLanguage guesses the language from the title when no source gave
// one. The top-ranked code wins.
func detectLanguage(d ports.LanguageDetector, rec *domain.Record) {
	if rec.Language != "" || d == nil || rec.Title == "" {
		return
	}

	if langs := d.Detect(rec.Title); len(langs) > 0 {
		rec.Language = langs[0]
	}
}

// observe logs and counts one source answer.
func (r *Reconciler) observe(ctx context.Context, source string, err error) {
	recordOutcome(ctx, r.outcomes, source, err)
}

// recordOutcome classifies a source answer for metrics and logs it at a
// level matching its severity.
func recordOutcome(ctx context.Context, outcomes ports.OutcomeRecorder, source string, err error) {
	outcome := classify(err)
	outcomes.RecordOutcome(source, outcome)

	if err == nil {
		return
	}

	logger := logging.FromContext(ctx).With(slog.String("source", source))

	if outcome == ports.OutcomeUnavailable {
		logger.WarnContext(ctx, "source unavailable", slog.Any("error", err))
		return
	}

	logger.DebugContext(ctx, "source had no record", slog.String("outcome", outcome))
}

func classify(err error) string {
	switch {
	case err == nil:
		return ports.OutcomeHit
	case domain.IsNotFound(err):
		return ports.OutcomeMiss
	case domain.IsInvalidIdentifier(err):
		return ports.OutcomeRejected
	default:
		return ports.OutcomeUnavailable
	}
}
