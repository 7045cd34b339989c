package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/expcfg/internal/config"
	"github.com/wesleyorama2/expcfg/internal/output"
)

var version = "0.1.0"

// errInvalidConfigs is returned when validation failed and the report has
// already been printed.
var errInvalidConfigs = errors.New("invalid config files")

// app carries state shared by the subcommands of one command tree.
type app struct {
	logger *log.Logger
}

// NewRootCmd builds the expcfg command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: log.New()}

	root := &cobra.Command{
		Use:     "expcfg",
		Short:   "Validate and inspect recommender experiment configs",
		Version: version,
		Long: `expcfg loads experiment configuration documents (YAML, JSON or TOML),
checks them against the experiment schema and its invariants, and reports
every problem found at once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelName, _ := cmd.Flags().GetString("log-level")
			level, err := log.ParseLevel(levelName)
			if err != nil {
				return err
			}
			a.logger.SetLevel(level)
			a.logger.SetOutput(cmd.ErrOrStderr())
			a.logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("variant-policy", "flag",
		"How is_search_params is reconciled with the hyperparameter section (flag, fields)")

	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newDumpCmd(a))
	return root
}

// Execute runs the command tree. It is called by main.main().
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil && !errors.Is(err, errInvalidConfigs) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func (a *app) loader(cmd *cobra.Command) (*config.Loader, error) {
	policyName, _ := cmd.Flags().GetString("variant-policy")
	policy, err := config.ParseVariantPolicy(policyName)
	if err != nil {
		return nil, err
	}
	return config.NewLoader(config.WithVariantPolicy(policy), config.WithLogger(a.logger)), nil
}

// colorDisabled reports whether output to w should be plain text.
func colorDisabled(cmd *cobra.Command, w io.Writer) bool {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !output.IsTerminal(f)
}
