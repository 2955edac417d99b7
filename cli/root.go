package cli

import (
	"fmt"
	"os"

	"remarknews/config"
	"remarknews/logger"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "remarknews",
		Short:         "Daily news digests for e-readers",
		Long:          "remarknews fetches RSS feeds, extracts the articles, renders one PDF or EPUB per source and delivers them to a reMarkable, an inbox or cloud storage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default "+config.DefaultConfigPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		a.runCmd(),
		a.previewCmd(),
		a.extractCmd(),
		a.serveCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	closeLog, err := logger.Init(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.closeLog = closeLog
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "remarknews %s (commit: %s)\n", version, commit)
		},
	}
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c string) {
	version = v
	commit = c
}
