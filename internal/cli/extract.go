package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/breast-mri-extract/internal/config"
	"github.com/joelkehle/breast-mri-extract/internal/extract"
	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/llm"
	"github.com/joelkehle/breast-mri-extract/internal/metrics"
	"github.com/joelkehle/breast-mri-extract/internal/output"
	"github.com/joelkehle/breast-mri-extract/internal/tracing"
)

type extractOptions struct {
	groupsFile  string
	matcherOnly bool
	concurrency int
	csv         string
	json        string
	xml         string
	sqlite      string
}

func newExtractCmd(a *app) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <report.txt|dir>...",
		Short: "Extract findings from report files and write the configured outputs",
		Long: "Extract reads each report file (directories contribute their *.txt files),\n" +
			"runs the field groups in order and writes one record per patient. The\n" +
			"patient id is the file name without its extension.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.groupsFile, "groups", "", "YAML/JSON field group list (default: built-in order)")
	f.BoolVar(&opts.matcherOnly, "matcher-only", false, "skip the language model and use the deterministic matcher alone")
	f.IntVar(&opts.concurrency, "concurrency", 0, "reports in flight (default: batch.concurrency)")
	f.StringVar(&opts.csv, "csv", "", "CSV output path (overrides output.csv)")
	f.StringVar(&opts.json, "json", "", "JSON output path (overrides output.json)")
	f.StringVar(&opts.xml, "xml", "", "XML output path (overrides output.xml)")
	f.StringVar(&opts.sqlite, "sqlite", "", "SQLite store path (overrides output.sqlite)")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, args []string, opts *extractOptions) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			a.log.WithError(err).Warn("tracing_shutdown_failed")
		}
	}()

	paths, err := collectReports(args)
	if err != nil {
		return err
	}
	cat, err := a.catalog()
	if err != nil {
		return err
	}
	groups, err := a.groups(opts.groupsFile, cat)
	if err != nil {
		return err
	}

	m := metrics.New(nil)
	if cfg.Metrics.Listen != "" {
		stopServer := a.serveMetrics(cfg.Metrics.Listen, m)
		defer stopServer()
	}

	info := output.RunInfo{}
	exOpts := []extract.Option{
		extract.WithStrictGates(cfg.Gating.Strict),
		extract.WithMaxReportBytes(cfg.Batch.MaxReportBytes),
		extract.WithLogger(a.log),
		extract.WithMetrics(m),
		extract.WithTracer(tracing.Tracer()),
	}
	if !cfg.Matcher.Disabled {
		mt, err := a.matcher(cat)
		if err != nil {
			return err
		}
		info.CueVersion = mt.CueVersion()
		exOpts = append(exOpts, extract.WithMatcher(mt, cfg.Matcher.OverrideKeys...))
	}
	if !opts.matcherOnly && cfg.LLM.Provider != config.ProviderNone {
		caller, err := llm.NewAnthropicCaller(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens)
		if err != nil {
			return err
		}
		client := llm.NewClient(caller,
			llm.WithAttempts(cfg.LLM.Attempts),
			llm.WithTimeout(cfg.LLM.Timeout),
			llm.WithLogger(a.log),
			llm.WithMetrics(m),
		)
		info.Model = client.ModelName()
		exOpts = append(exOpts, extract.WithClient(client))
	}
	ex, err := extract.New(cat, exOpts...)
	if err != nil {
		return err
	}

	sink, closeSink, err := a.buildSink(cat, info, opts)
	if err != nil {
		return err
	}
	defer closeSink()

	concurrency := opts.concurrency
	if concurrency < 1 {
		concurrency = cfg.Batch.Concurrency
	}
	sum, err := ex.RunBatch(ctx, paths, groups, concurrency, sink)
	if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
		a.log.WithError(werr).Warn("metrics_textfile_failed")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d reports, %d failed, %d with issues, %d sink errors in %s\n",
		sum.RunID, sum.Reports, sum.Failed, sum.WithIssue, sum.SinkErrs, sum.Elapsed.Round(time.Millisecond))
	switch {
	case sum.SinkErrs > 0:
		return fmt.Errorf("%d records could not be saved", sum.SinkErrs)
	case sum.Reports > 0 && sum.Failed == sum.Reports:
		return errors.New("every report failed")
	}
	return nil
}

// buildSink opens every configured destination. The returned sink is nil
// when nothing is configured.
func (a *app) buildSink(cat *fields.Catalog, info output.RunInfo, opts *extractOptions) (extract.Sink, func(), error) {
	pick := func(flag, cfg string) string {
		if flag != "" {
			return flag
		}
		return cfg
	}
	out := a.cfg.Output
	ms := output.NewMultiSink(cat)
	if p := pick(opts.csv, out.CSV); p != "" {
		ms.AddWriter("csv", output.NewCSVWriter(p))
	}
	if p := pick(opts.json, out.JSON); p != "" {
		ms.AddWriter("json", output.NewJSONWriter(p))
	}
	if p := pick(opts.xml, out.XML); p != "" {
		ms.AddWriter("xml", output.NewXMLWriter(p))
	}
	closer := func() {}
	if p := pick(opts.sqlite, out.SQLite); p != "" {
		store, err := output.NewSQLiteStore(p, cat, info)
		if err != nil {
			return nil, nil, err
		}
		ms.AddStore(store)
		closer = func() {
			if err := store.Close(); err != nil {
				a.log.WithError(err).Warn("sqlite_close_failed")
			}
		}
	}
	if ms.Empty() {
		a.log.Warn("no outputs configured; records are not saved")
		return nil, closer, nil
	}
	return ms, closer, nil
}

func (a *app) serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).WithField("addr", addr).Error("metrics_listener_failed")
		}
	}()
	a.log.WithField("addr", addr).Info("metrics_listening")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// collectReports expands directories into their *.txt files. Explicit file
// arguments are kept whatever their extension.
func collectReports(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.txt"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no report files found")
	}
	return paths, nil
}
