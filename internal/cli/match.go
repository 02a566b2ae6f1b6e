package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/joelkehle/breast-mri-extract/internal/matcher"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

type matchVerdict struct {
	Value     any    `json:"value"`
	Ambiguous bool   `json:"ambiguous,omitempty"`
	Section   string `json:"section,omitempty"`
}

func newMatchCmd(a *app) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "match <report.txt>...",
		Short: "Run only the deterministic matcher and print its values as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			mt, err := a.matcher(cat)
			if err != nil {
				return err
			}
			out := make(map[string]any, len(args))
			for _, path := range args {
				rec, err := record.NewFromFileLimit(path, a.cfg.Batch.MaxReportBytes, false)
				if err != nil {
					return err
				}
				doc := matcher.Parse(rec.ReportText)
				if !explain {
					out[rec.PatientID] = mt.MatchAll(doc)
					continue
				}
				verdicts := map[string]matchVerdict{}
				for _, k := range mt.Keys() {
					v := mt.Explain(doc, k)
					if !v.Found && !v.Ambiguous {
						continue
					}
					verdicts[k] = matchVerdict{Value: v.Value.Any(), Ambiguous: v.Ambiguous, Section: v.Section}
				}
				out[rec.PatientID] = verdicts
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "include the section and ambiguity of each verdict")
	return cmd
}
