package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scipunch/feedwiki/config"
	"github.com/scipunch/feedwiki/digest"
	"github.com/scipunch/feedwiki/logging"
)

// Set with -ldflags "-X github.com/scipunch/feedwiki/cmd.version=..."
var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig   string
	flagVerbose  bool
	flagFailFast bool
)

var rootCmd = &cobra.Command{
	Use:          "feedwiki",
	Short:        "Collect syndication feeds into a Markdown wiki",
	Long:         "feedwiki fetches the configured feeds, stores new entries in SQLite and writes a per-run archive page linked from Home.md.",
	RunE:         runDigest,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch all feeds once and update the wiki",
	RunE:  runDigest,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "feedwiki %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML or TOML config (default: config.yaml, config.yml or config.toml in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&flagFailFast, "fail-fast", false, "abort the run on the first feed that cannot be fetched")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := flagConfig
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return config.Config{}, err
		}
		path = found
	}

	conf, err := config.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return conf, fmt.Errorf("%w: %s", config.ErrNotFound, path)
	}
	return conf, err
}

func runDigest(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config with %w", err)
	}

	closeLog, err := logging.Setup(logging.Options{Debug: flagVerbose, File: conf.LogFile})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := digest.Execute(ctx, conf, digest.WithFailFast(flagFailFast))
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "saved: %s\n", res.ArchivePath)
	return nil
}
