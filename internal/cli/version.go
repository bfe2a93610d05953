package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phovea/generator-phovea/internal/branding"
)

func newVersionCmd() *cobra.Command {
	var (
		versionShort bool
		versionJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if versionShort {
				fmt.Fprintln(out, buildVersion)
				return nil
			}

			if versionJSON {
				info := map[string]string{
					"version": buildVersion,
					"commit":  buildCommit,
					"date":    buildDate,
					"module":  branding.GoModule(),
				}
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling version info: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "%s version %s (commit: %s, built: %s)\n", branding.CLIName(), buildVersion, buildCommit, buildDate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	cmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	return cmd
}
