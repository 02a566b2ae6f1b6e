// Package cli implements the mri-extract command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joelkehle/breast-mri-extract/internal/config"
	"github.com/joelkehle/breast-mri-extract/internal/extract"
	"github.com/joelkehle/breast-mri-extract/internal/fields"
	"github.com/joelkehle/breast-mri-extract/internal/logging"
	"github.com/joelkehle/breast-mri-extract/internal/matcher"
)

// Build-time variables, set by main.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:     "mri-extract",
		Short:   "Extract structured findings from free-text breast MRI reports",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newExtractCmd(a),
		newRenderCmd(a),
		newFieldsCmd(a),
		newMatchCmd(a),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, err := logrus.ParseLevel(a.logLevel); err != nil {
			return fmt.Errorf("--log-level %q is invalid", a.logLevel)
		}
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logging.NewWithOutput(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return nil
}

// catalog applies the configured keep-negative set to the default catalog.
func (a *app) catalog() (*fields.Catalog, error) {
	cat := fields.Default()
	if len(a.cfg.Gating.KeepNegative) == 0 {
		return cat, nil
	}
	return cat.WithKeepNegative(a.cfg.Gating.KeepNegative)
}

func (a *app) matcher(cat *fields.Catalog) (*matcher.Matcher, error) {
	var (
		cues *matcher.CueSet
		err  error
	)
	if a.cfg.Matcher.CueFile != "" {
		cues, err = matcher.LoadCueSet(a.cfg.Matcher.CueFile)
	} else {
		cues, err = matcher.DefaultCueSet(a.cfg.Matcher.CueVersion)
	}
	if err != nil {
		return nil, err
	}
	return matcher.New(cat, cues)
}

// groups returns the groups from path, the configured groups file, or the
// default order.
func (a *app) groups(path string, cat *fields.Catalog) ([]extract.Group, error) {
	if path == "" {
		path = a.cfg.Groups.File
	}
	if path == "" {
		return extract.DefaultGroups(), nil
	}
	return extract.LoadGroups(path, cat)
}
