package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/kinds"
	"github.com/phovea/generator-phovea/internal/scaffold"
)

// kindEntry is the JSON shape of one kind.
type kindEntry struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Bundle      string   `json:"bundle"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional,omitempty"`
	Fragments   []string `json:"fragments,omitempty"`
	Source      string   `json:"source,omitempty"`
}

func newKindsCmd(engine *scaffold.Engine, engineErr error) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List the extension kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if engineErr != nil {
				return engineErr
			}
			entries := kindEntries(engine.Kinds().Kinds())
			if asJSON {
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return printKindsTable(cmd, entries)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func kindEntries(ks []*kinds.Kind) []kindEntry {
	entries := make([]kindEntry, 0, len(ks))
	for _, k := range ks {
		e := kindEntry{
			ID:          k.ID,
			Label:       k.Label,
			Description: k.Description,
			Bundle:      k.Bundle,
			Required:    k.Required,
			Source:      k.Source,
		}
		for _, opt := range k.Optional {
			e.Optional = append(e.Optional, opt.Name)
		}
		for _, f := range k.Fragments {
			e.Fragments = append(e.Fragments, f.Describe())
		}
		entries = append(entries, e)
	}
	return entries
}

func printKindsTable(cmd *cobra.Command, entries []kindEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KIND\tREQUIRED\tOPTIONAL\tDESCRIPTION")
	for _, e := range entries {
		optional := strings.Join(e.Optional, ",")
		if optional == "" {
			optional = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, strings.Join(e.Required, ","), optional, e.Description)
	}
	return w.Flush()
}

func newCheckCmd(engine *scaffold.Engine, engineErr error) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Validate kind definitions and templates",
		Long: `Validate every kind without generating anything: the registry matches its
schema, every bundle exists, and every placeholder in templates and fragments
names a token the kind provides.

With a directory argument, that directory is checked as an overlay on top of
the built-in kinds; otherwise the configured kinds are checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine, engineErr
			if len(args) == 1 {
				e, err = loadEngine(args[0])
			}
			if err != nil {
				printProblems(cmd, err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d kinds and %d bundles OK\n", e.Kinds().Len(), e.Bundles().Len())
			return nil
		},
	}
}

func printProblems(cmd *cobra.Command, err error) {
	var coded *errors.Error
	if !stderrors.As(err, &coded) {
		return
	}
	problems, ok := coded.Details["problems"].([]scaffold.Problem)
	if !ok {
		return
	}
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Code, p)
	}
}
