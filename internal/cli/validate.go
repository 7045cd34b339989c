package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/expcfg/internal/output"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate experiment config files and list every problem",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")

			loader, err := a.loader(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			reporter := output.NewReporter(out, colorDisabled(cmd, out))
			reporter.Quiet = quiet

			var passed, failed int
			for _, path := range args {
				cfg, err := loader.Load(path)
				if err != nil {
					failed++
					reporter.Failure(path, err)
					continue
				}
				passed++
				reporter.Success(path, cfg)
			}

			if len(args) > 1 {
				reporter.Summary(passed, failed)
			}
			if failed > 0 {
				return errInvalidConfigs
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().BoolP("quiet", "q", false, "Only report files with problems")
	return cmd
}
