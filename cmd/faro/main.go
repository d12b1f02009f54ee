// Command faro is the hybrid search service CLI: it serves the HTTP API,
// ingests data sources, builds the full-text and vector indexes, and manages
// documents, users and migrations.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/config"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

// Process exit codes.
const (
	exitOK       = 0
	exitMeta     = 10 // meta parse, config, hashing
	exitMetaOpen = 11 // meta file open
	exitDatabase = 12
	exitOther    = 99
)

// cliError couples an error with the process exit code it maps to.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

func failMeta(err error) error     { return &cliError{code: exitMeta, err: err} }
func failMetaOpen(err error) error { return &cliError{code: exitMetaOpen, err: err} }
func failDatabase(err error) error { return &cliError{code: exitDatabase, err: err} }

var (
	flagConfig   string
	flagLogLevel string

	log = logrus.New()
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("faro version %s (commit: %s, built: %s)", version, commit, buildDate)
	}

	return fmt.Sprintf("faro version %s-dev", version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "faro",
		Short:   "faro — hybrid lexical + semantic search over document collections",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(flagLogLevel)
			if err != nil {
				return failMeta(fmt.Errorf("unknown log level %q, use trace, debug, info, warn or error", flagLogLevel))
			}

			log.SetLevel(level)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newMigrationsCmd())
	rootCmd.AddCommand(newUsersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var ce *cliError
		if errors.As(err, &ce) {
			os.Exit(ce.code)
		}

		os.Exit(exitOther)
	}

	os.Exit(exitOK)
}

// loadSettings reads the configuration file, mapping failures to the meta
// exit code.
func loadSettings() (*config.Settings, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, failMeta(err)
	}

	return cfg, nil
}
