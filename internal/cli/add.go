package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phovea/generator-phovea/internal/branding"
	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/scaffold"
	"github.com/phovea/generator-phovea/internal/writer"
)

// addOptions are the flags shared by every add subcommand.
type addOptions struct {
	dir    string
	sets   []string
	dryRun bool
	json   bool
}

func newAddCmd(engine *scaffold.Engine, engineErr error) *cobra.Command {
	opts := &addOptions{}
	addCmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Add an extension to the project",
		Long: `Render the templates of an extension kind into the project and merge its
manifest fragments. Existing files are never overwritten: a file that differs
from the generated one is reported as a conflict and left untouched.

Run '` + branding.CLIName() + ` kinds' to list the available kinds.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if engineErr != nil {
				return engineErr
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			_, err := engine.Kinds().Lookup(args[0])
			return err
		},
	}
	addCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "Project directory")
	addCmd.PersistentFlags().StringArrayVar(&opts.sets, "set", nil, "Token value as name=value (repeatable)")
	addCmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Show the plan without writing")
	addCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the report as JSON")

	if engine != nil {
		for _, k := range engine.Kinds().Kinds() {
			addCmd.AddCommand(newAddKindCmd(engine, k, opts))
		}
	}
	return addCmd
}

func newAddKindCmd(engine *scaffold.Engine, k *kinds.Kind, opts *addOptions) *cobra.Command {
	values := make(map[string]*string)
	cmd := &cobra.Command{
		Use:   k.ID + usageArgs(k),
		Short: kindSummary(k),
		Long:  kindHelp(k),
		Args:  cobra.MaximumNArgs(len(k.Required)),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := collectTokens(cmd, k, args, values, opts.sets)
			if err != nil {
				return err
			}
			return runAdd(cmd, engine, k.ID, raw, opts)
		},
	}
	for _, name := range k.TokenNames() {
		values[name] = cmd.Flags().String(name, "", tokenUsage(k, name))
	}
	return cmd
}

// collectTokens merges positional arguments, --<token> flags and --set
// pairs, in increasing priority.
func collectTokens(cmd *cobra.Command, k *kinds.Kind, args []string, values map[string]*string, sets []string) (map[string]string, error) {
	raw := make(map[string]string)
	for i, arg := range args {
		raw[k.Required[i]] = arg
	}
	for name, v := range values {
		if cmd.Flags().Changed(name) {
			raw[name] = *v
		}
	}
	for _, pair := range sets {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrInvalidToken, "--set %q: expected name=value", pair)
		}
		if _, declared := values[name]; !declared {
			return nil, errors.Newf(errors.ErrInvalidToken, "--set %q: kind %s has no token %s", pair, k.ID, name).
				WithDetail("token", name)
		}
		raw[name] = value
	}
	return raw, nil
}

func runAdd(cmd *cobra.Command, engine *scaffold.Engine, kindID string, raw map[string]string, opts *addOptions) error {
	fs, project, err := scaffold.ProjectFs(opts.dir)
	if err != nil {
		return err
	}

	var report *writer.Report
	if opts.dryRun {
		p, err := engine.Plan(kindID, raw, fs, project)
		if err != nil {
			return err
		}
		report = writer.Preview(p.Decisions)
	} else {
		report, err = engine.GenerateFS(kindID, raw, fs, project)
		if err != nil {
			return err
		}
	}

	if opts.json {
		err = printReportJSON(cmd.OutOrStdout(), report)
	} else {
		err = printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}

	switch report.ExitCode() {
	case errors.ExitWrite:
		return report.Err
	case errors.ExitConflict:
		n := report.Count(writer.StatusConflicted)
		return errors.Newf(errors.ErrConflict, "%d %s need manual resolution", n, plural(n, "conflict", "conflicts")).
			WithDetail("conflicts", n)
	}
	return nil
}

func usageArgs(k *kinds.Kind) string {
	var b strings.Builder
	for _, name := range k.Required {
		b.WriteString(" [" + name + "]")
	}
	return b.String()
}

func kindSummary(k *kinds.Kind) string {
	if k.Label != "" {
		return "Add a " + k.Label
	}
	return "Add a " + k.ID + " extension"
}

func kindHelp(k *kinds.Kind) string {
	var b strings.Builder
	b.WriteString(kindSummary(k))
	if k.Description != "" {
		b.WriteString(": " + k.Description)
	}
	b.WriteString(".\n\nRequired tokens may be given as positional arguments in the order shown.\n")
	if k.Source != "" {
		fmt.Fprintf(&b, "Defined in %s.\n", k.Source)
	}
	return b.String()
}

func tokenUsage(k *kinds.Kind, name string) string {
	if k.IsRequired(name) {
		return "Value of " + name + " (required)"
	}
	for _, opt := range k.Optional {
		if opt.Name != name {
			continue
		}
		switch {
		case opt.FromProject:
			return "Value of " + name + " (default: project name)"
		case opt.Default != "":
			return "Value of " + name + " (default: " + opt.Default + ")"
		}
	}
	return "Value of " + name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
