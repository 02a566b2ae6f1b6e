package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/breast-mri-extract/internal/output"
	"github.com/joelkehle/breast-mri-extract/internal/report"
)

type renderOptions struct {
	json   string
	sqlite string
	format string
	out    string
	chrome string
}

func newRenderCmd(a *app) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <patient-id>",
		Short: "Render a patient summary from saved results",
		Long: "Render rebuilds one patient's summary from the JSON output, or from the\n" +
			"SQLite store when --sqlite is given, without running extraction again.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.json, "json", "", "JSON results file (default: output.json)")
	f.StringVar(&opts.sqlite, "sqlite", "", "SQLite result store; issues are included")
	f.StringVar(&opts.format, "format", "md", "output format: md, html or pdf")
	f.StringVarP(&opts.out, "out", "o", "", "output path (default: stdout)")
	f.StringVar(&opts.chrome, "chrome", "", "Chromium binary for pdf (default: autodetect)")
	return cmd
}

func (a *app) runRender(cmd *cobra.Command, patientID string, opts *renderOptions) error {
	switch opts.format {
	case "md", "html":
	case "pdf":
		if opts.out == "" {
			return fmt.Errorf("--format pdf requires --out")
		}
	default:
		return fmt.Errorf("--format %q is invalid; expected md|html|pdf", opts.format)
	}
	cat, err := a.catalog()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var md string
	switch {
	case opts.sqlite != "":
		store, err := output.NewSQLiteStore(opts.sqlite, cat, output.RunInfo{})
		if err != nil {
			return err
		}
		defer store.Close()
		md, err = report.RebuildFromStore(ctx, store, patientID, cat)
		if err != nil {
			return err
		}
	default:
		path := opts.json
		if path == "" {
			path = a.cfg.Output.JSON
		}
		if path == "" {
			return fmt.Errorf("no JSON results configured; pass --json or --sqlite")
		}
		md, err = report.RebuildFromJSON(path, patientID, cat)
		if err != nil {
			return err
		}
	}

	var body []byte
	switch opts.format {
	case "md":
		body = []byte(md)
	case "html", "pdf":
		html, err := report.NewHTMLRenderer().Render(patientID, md)
		if err != nil {
			return err
		}
		body = []byte(html)
		if opts.format == "pdf" {
			body, err = report.NewPDFRenderer(opts.chrome).Render(ctx, html)
			if err != nil {
				return err
			}
		}
	}
	a.log.WithField("patient", patientID).WithField("format", opts.format).Debug("summary_rendered")
	return writeOut(cmd.OutOrStdout(), opts.out, body)
}

func writeOut(stdout io.Writer, path string, body []byte) error {
	if path == "" {
		_, err := stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
