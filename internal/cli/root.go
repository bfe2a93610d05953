package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/phovea/generator-phovea/internal/branding"
	"github.com/phovea/generator-phovea/internal/config"
	"github.com/phovea/generator-phovea/internal/errors"
	"github.com/phovea/generator-phovea/internal/logging"
	"github.com/phovea/generator-phovea/internal/scaffold"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// NewRootCmd builds the command tree. Configuration is loaded and the
// engine is constructed here because the add subcommands are generated
// from the registered kinds. A broken overlay does not prevent the tree
// from being built; commands that need the engine report the load error.
func NewRootCmd() *cobra.Command {
	config.Load()
	engine, engineErr := loadEngine(config.TemplatesDir())

	var verbosity int
	rootCmd := &cobra.Command{
		Use:   branding.CLIName(),
		Short: branding.Description(),
		Long: branding.DisplayName() + ` adds extensions (REST namespaces, ID mapping providers, SQL views,
services, scores) to an existing phovea plugin. Generated files are created once and
never overwritten; manifests such as package.json, requirements.txt and .yo-rc.json are
merged so that running the same command twice changes nothing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("verbose") {
				verbosity = config.Verbosity()
			}
			logging.Setup(cmd.ErrOrStderr(), verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")

	rootCmd.AddCommand(newAddCmd(engine, engineErr))
	rootCmd.AddCommand(newKindsCmd(engine, engineErr))
	rootCmd.AddCommand(newCheckCmd(engine, engineErr))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// loadEngine returns the built-in engine, or one with the overlay in dir
// taking priority when dir is set.
func loadEngine(dir string) (*scaffold.Engine, error) {
	if dir == "" {
		return scaffold.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrReadFailed, "reading %s %s", config.KeyTemplatesDir, dir).WithDetail("path", dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrReadFailed, "%s %s is not a directory", config.KeyTemplatesDir, dir).WithDetail("path", dir)
	}
	return scaffold.NewEngine(scaffold.Source{Name: dir, FS: os.DirFS(dir)}, scaffold.BuiltinSource())
}

// Execute runs the root command with build info injected via ldflags and
// returns the process exit code.
func Execute(version, commit, date string) int {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errors.ExitCode(err)
	}
	return errors.ExitOK
}
