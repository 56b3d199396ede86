// Package bootstrap builds the resolution engine and its source clients
// from configuration. The HTTP service and the CLI share it.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/adapters/formats"
	"github.com/jsamuelsen/bibresolve/internal/adapters/language"
	"github.com/jsamuelsen/bibresolve/internal/adapters/sources"
	"github.com/jsamuelsen/bibresolve/internal/app"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/platform/telemetry"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

// Options adjust what Build wires beyond the configuration.
type Options struct {
	Logger *slog.Logger

	// Registerer receives the source outcome counter. Nil skips metrics.
	Registerer prometheus.Registerer

	// Transport replaces the HTTP transport of every source client.
	Transport http.RoundTripper
}

// Engine is a wired engine together with the clients behind it.
type Engine struct {
	*app.Engine

	// Clients are the source clients, one per configured source.
	Clients []*clients.Client
}

// RegisterHealth adds every source client to reg.
func (e *Engine) RegisterHealth(reg ports.HealthRegistry) error {
	for _, c := range e.Clients {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering %s health check: %w", c.Name(), err)
		}
	}

	return nil
}

// Build creates the source clients, the reconciler and the engine.
func Build(cfg *config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var outcomes ports.OutcomeRecorder = ports.NopOutcomes{}

	if opts.Registerer != nil {
		so, err := telemetry.NewSourceOutcomes(opts.Registerer)
		if err != nil {
			return nil, err
		}

		outcomes = so
	}

	b := &builder{cfg: cfg, logger: logger, transport: opts.Transport}

	svc := cfg.Services

	metaClient, err := b.client(svc.MetaCatalog.Name, svc.MetaCatalog.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	bibClient, err := b.client(svc.BibFormat.Name, svc.BibFormat.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	citoidClient, err := b.client(svc.Citoid.Name, svc.Citoid.BaseURL, map[string]string{
		"Api-User-Agent": cfg.Resolver.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	worldcatClient, err := b.client(svc.WorldCat.Name, svc.WorldCat.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	doiClient, err := b.client(svc.DOI.Name, svc.DOI.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	webClient, err := b.client(svc.Web.Name, "", nil)
	if err != nil {
		return nil, err
	}

	detector := language.New()

	reconciler := app.NewReconciler(app.ReconcilerConfig{
		MetaCatalog: sources.NewMetaCatalog(metaClient, svc.MetaCatalog.Name),
		BibFormat:   sources.NewBibFormat(bibClient, svc.BibFormat.Name, formats.NewBibTeX()),
		OCLC:        sources.NewCitoid(citoidClient, svc.Citoid.Name),
		Language:    detector,
		Outcomes:    outcomes,
	})

	engine := app.NewEngine(app.EngineConfig{
		Reconciler:        reconciler,
		OCLC:              sources.NewWorldCat(worldcatClient, svc.WorldCat.Name, formats.NewRIS()),
		DOI:               sources.NewDOI(doiClient, svc.DOI.Name),
		Pages:             sources.NewWebPage(webClient, svc.Web.Name, svc.Web.MaxPageBytes),
		Language:          detector,
		Outcomes:          outcomes,
		DefaultDateFormat: cfg.Resolver.DefaultDateFormat,
		BatchLimit:        cfg.Resolver.BatchLimit,
	})

	return &Engine{Engine: engine, Clients: b.clients}, nil
}

type builder struct {
	cfg       *config.Config
	logger    *slog.Logger
	transport http.RoundTripper
	clients   []*clients.Client
}

func (b *builder) client(name, baseURL string, headers map[string]string) (*clients.Client, error) {
	c, err := clients.New(&clients.Config{
		BaseURL:     baseURL,
		ServiceName: name,
		Timeout:     b.cfg.Client.Timeout,
		Retry:       b.cfg.Client.Retry,
		Circuit:     b.cfg.Client.CircuitBreaker,
		RateLimit:   b.cfg.Client.RateLimit,
		Pool:        b.cfg.Client.Transport,
		Transport:   b.transport,
		UserAgent:   b.cfg.Resolver.UserAgent,
		Headers:     headers,
		Logger:      b.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", name, err)
	}

	b.clients = append(b.clients, c)

	return c, nil
}
