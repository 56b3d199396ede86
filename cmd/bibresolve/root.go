package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/bibresolve/internal/app"
	"github.com/jsamuelsen/bibresolve/internal/bootstrap"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

// Resolver is the part of the engine the commands use.
type Resolver interface {
	ResolveByISBN(ctx context.Context, container string, pure bool, dateFormat string) (*domain.Record, error)
	ResolveByOCLC(ctx context.Context, oclc, dateFormat string) (*domain.Record, *domain.UserMessage, error)
	ResolveByDOI(ctx context.Context, doi, dateFormat string) (*domain.Record, error)
	ResolveByURL(ctx context.Context, url, dateFormat string) (*domain.Record, error)
	Resolve(ctx context.Context, raw, dateFormat string) (*domain.Record, *domain.UserMessage, error)
	ResolveBatch(ctx context.Context, inputs []string, dateFormat string) []app.BatchItem
	ExtractAuthors(html string) []domain.Name
}

// resolverFactory builds the resolver once flags are parsed.
type resolverFactory func(opts *globalOptions) (Resolver, error)

type globalOptions struct {
	profile    string
	logLevel   string
	dateFormat string
	timeout    time.Duration
	compact    bool
}

func newRootCmd(factory resolverFactory) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "bibresolve",
		Short:         "Resolve ISBNs, OCLC numbers, DOIs and URLs into citation records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.profile, "profile", os.Getenv("APP_ENVIRONMENT"), "config profile loaded from configs/<profile>.yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr (trace, debug, info, warn, error)")
	flags.StringVar(&opts.dateFormat, "date-format", "", "date format attached to records (strftime style)")
	flags.DurationVar(&opts.timeout, "timeout", time.Minute, "overall time limit for the command")
	flags.BoolVar(&opts.compact, "compact", false, "print single-line JSON")

	c := &cli{opts: opts, factory: factory}

	root.AddCommand(
		c.isbnCmd(),
		c.oclcCmd(),
		c.doiCmd(),
		c.urlCmd(),
		c.resolveCmd(),
		c.batchCmd(),
		c.authorsCmd(),
	)

	return root
}

type cli struct {
	opts    *globalOptions
	factory resolverFactory
}

// run builds the resolver and calls fn with a context bounded by --timeout.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, r Resolver) (any, error)) error {
	if c.opts.dateFormat != "" && !strings.Contains(c.opts.dateFormat, "%") {
		return &usageError{fmt.Errorf("date format %q has no %% directive", c.opts.dateFormat)}
	}

	r, err := c.factory(c.opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), c.opts.timeout)
	defer cancel()

	out, err := fn(ctx, r)
	if err != nil {
		if app.IsUserFacing(err) {
			return &usageError{err}
		}

		return err
	}

	return c.print(cmd.OutOrStdout(), out)
}

func (c *cli) print(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !c.opts.compact {
		enc.SetIndent("", "  ")
	}

	return enc.Encode(v)
}

// messageError reports a rejected identifier with its explanatory lines.
func messageError(msg *domain.UserMessage) error {
	lines := msg.Lines()

	return &usageError{fmt.Errorf("%s\n%s\n%s", lines[0], lines[1], lines[2])}
}

func (c *cli) isbnCmd() *cobra.Command {
	var pure bool

	cmd := &cobra.Command{
		Use:   "isbn <text>",
		Short: "Find an ISBN in text and reconcile the book sources for it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				return r.ResolveByISBN(ctx, strings.Join(args, " "), pure, c.opts.dateFormat)
			})
		},
	}

	cmd.Flags().BoolVar(&pure, "pure", false, "treat the argument as the ISBN itself")

	return cmd
}

func (c *cli) oclcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "oclc <number>",
		Short: "Look an OCLC number up in the library catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				rec, msg, err := r.ResolveByOCLC(ctx, args[0], c.opts.dateFormat)
				if err != nil {
					return nil, err
				}

				if msg != nil {
					return nil, messageError(msg)
				}

				return rec, nil
			})
		},
	}
}

func (c *cli) doiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doi <doi>",
		Short: "Resolve a DOI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				return r.ResolveByDOI(ctx, args[0], c.opts.dateFormat)
			})
		},
	}
}

func (c *cli) urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <url>",
		Short: "Build a record from an article page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				return r.ResolveByURL(ctx, args[0], c.opts.dateFormat)
			})
		},
	}
}

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Detect the identifier kind and resolve it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				rec, msg, err := r.Resolve(ctx, args[0], c.opts.dateFormat)
				if err != nil {
					return nil, err
				}

				if msg != nil {
					return nil, messageError(msg)
				}

				return rec, nil
			})
		},
	}
}

// batchLine is one line of batch output.
type batchLine struct {
	Input   string         `json:"input"`
	Record  *domain.Record `json:"record,omitempty"`
	Message []string       `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (c *cli) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file]",
		Short: "Resolve one identifier per line from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			var inputs []string

			for _, line := range strings.Split(string(data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					inputs = append(inputs, line)
				}
			}

			if len(inputs) == 0 {
				return &usageError{errors.New("no identifiers given")}
			}

			return c.run(cmd, func(ctx context.Context, r Resolver) (any, error) {
				items := r.ResolveBatch(ctx, inputs, c.opts.dateFormat)

				lines := make([]batchLine, len(items))
				for i, it := range items {
					lines[i] = batchLine{Input: it.Input, Record: it.Record}

					switch {
					case it.Err != nil:
						lines[i].Error = it.Err.Error()
					case it.Message != nil:
						l := it.Message.Lines()
						lines[i].Message = l[:]
					}
				}

				return lines, nil
			})
		},
	}
}

func (c *cli) authorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authors [file]",
		Short: "Extract the byline of an HTML document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			return c.run(cmd, func(_ context.Context, r Resolver) (any, error) {
				authors := r.ExtractAuthors(string(data))
				if authors == nil {
					return []domain.Name{}, nil
				}

				return authors, nil
			})
		},
	}
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, &usageError{err}
	}

	return data, nil
}

// defaultResolver wires the real engine. Logs go to stderr so stdout stays JSON.
func defaultResolver(opts *globalOptions) (Resolver, error) {
	cfg, err := config.Load(opts.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg.Log.Level = opts.logLevel
	cfg.Log.Format = "pretty"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "bibresolve",
		Version: cfg.App.Version,
	}, os.Stderr)
	slog.SetDefault(logger)

	engine, err := bootstrap.Build(cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return nil, err
	}

	return engine, nil
}
