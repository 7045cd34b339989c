package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/expcfg/pkg/jsonpath"
)

func newDumpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print a validated config, or one value from it",
		Example: `  expcfg dump conf/config.yaml
  expcfg dump conf/config.yaml --format json
  expcfg dump conf/config.yaml --path lr.MF.IPS`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			path, _ := cmd.Flags().GetString("path")

			if format != "yaml" && format != "json" {
				return fmt.Errorf("invalid format '%s', must be one of: yaml, json", format)
			}

			loader, err := a.loader(cmd)
			if err != nil {
				return err
			}
			cfg, err := loader.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if path != "" {
				data, err := json.Marshal(cfg)
				if err != nil {
					return err
				}
				value, err := jsonpath.Extract(data, path)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, value)
				return nil
			}

			if format == "json" {
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
	cmd.Flags().StringP("path", "p", "", "Print only the value at this path (e.g. lr.MF.IPS)")
	return cmd
}
