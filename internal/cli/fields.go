package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joelkehle/breast-mri-extract/internal/extract"
	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/prompt"
	"github.com/joelkehle/breast-mri-extract/internal/record"
)

type fieldsOptions struct {
	prompt     bool
	group      string
	reportFile string
	groupsFile string
}

func newFieldsCmd(a *app) *cobra.Command {
	opts := &fieldsOptions{}
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the field catalog, or print the prompt for one group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.prompt {
				return a.printPrompt(cmd, opts)
			}
			return a.listFields(cmd)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.prompt, "prompt", false, "print the prompt instead of the catalog")
	f.StringVar(&opts.group, "group", "", "group to build the prompt for (default: first group)")
	f.StringVar(&opts.reportFile, "report", "", "report file to embed in the prompt")
	f.StringVar(&opts.groupsFile, "groups", "", "YAML/JSON field group list (default: built-in order)")
	return cmd
}

func (a *app) listFields(cmd *cobra.Command) error {
	cat, err := a.catalog()
	if err != nil {
		return err
	}
	specs, err := cat.Specs(cat.Keys())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tGATE\tKEEPS NEGATIVE\tDOMAIN")
	for _, s := range specs {
		gate := "-"
		if s.Gate != fields.GateNone {
			gate = string(s.Gate)
		}
		if s.Controls != fields.GateNone {
			gate = "controls " + string(s.Controls)
		}
		keep := ""
		if s.KeepNegativeUnderGate {
			keep = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Key, gate, keep, describeDomain(s.Domain))
	}
	return tw.Flush()
}

func describeDomain(d fields.Domain) string {
	switch d.Kind {
	case fields.DomainEnum:
		return strings.Join(d.Allowed, " | ")
	case fields.DomainInt:
		if len(d.Ints) > 0 {
			parts := make([]string, len(d.Ints))
			for i, n := range d.Ints {
				parts[i] = fmt.Sprint(n)
			}
			return "integer " + strings.Join(parts, " | ")
		}
		return fmt.Sprintf("integer %g..%g", d.Min, d.Max)
	case fields.DomainFloat:
		s := fmt.Sprintf("number %g..%g", d.Min, d.Max)
		if d.Unit != "" {
			s += " " + d.Unit
		}
		return s
	case fields.DomainPattern:
		if d.Pattern != nil {
			return "pattern " + d.Pattern.String()
		}
		return "pattern"
	}
	return "?"
}

// printPrompt is a dry run of one group: nothing is sent anywhere.
func (a *app) printPrompt(cmd *cobra.Command, opts *fieldsOptions) error {
	if opts.reportFile == "" {
		return fmt.Errorf("--prompt requires --report")
	}
	cat, err := a.catalog()
	if err != nil {
		return err
	}
	groups, err := a.groups(opts.groupsFile, cat)
	if err != nil {
		return err
	}
	g, err := findGroup(groups, opts.group)
	if err != nil {
		return err
	}
	rec, err := record.NewFromFileLimit(opts.reportFile, a.cfg.Batch.MaxReportBytes, a.cfg.Gating.Strict)
	if err != nil {
		return err
	}
	p, err := prompt.NewBuilder(cat).Build(rec.ReportText, g.Keys)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
	return err
}

func findGroup(groups []extract.Group, name string) (extract.Group, error) {
	if len(groups) == 0 {
		return extract.Group{}, fmt.Errorf("no groups defined")
	}
	if name == "" {
		return groups[0], nil
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
		names = append(names, g.Name)
	}
	return extract.Group{}, fmt.Errorf("unknown group %q; have %s", name, strings.Join(names, ", "))
}
