package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/internal/store/memstore"
	"fund-reconciliation-engine/internal/store/mysql"
	"fund-reconciliation-engine/pkg/logger"
)

var (
	cfgFile      string
	verbose      bool
	storeBackend string
	version      = "dev"
	commit       = "unknown"
	date         = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconengine",
	Short: "Bank reconciliation engine",
	Long: `Reconengine manages the full bank reconciliation workflow: importing
bank statement transactions, matching them against ledger lines, recording
balancing adjustments, and certifying that statement and book balances agree.

Examples:
  reconengine statement create --account 1 --start 2024-01-01 --end 2024-01-31 --balance 10500.00
  reconengine import --statement 1 --file january.csv
  reconengine automatch --reconciliation 1
  reconengine complete --reconciliation 1
  reconengine report --reconciliation 1 --format json`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code. The
// exit code distinguishes validation, not-found, conflict and partial
// failures for scripted callers.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "mysql", "storage backend: mysql, memory")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("RECONENGINE")
	viper.AutomaticEnv()

	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	log, err := logger.New(&logger.Config{
		Level:  level,
		Format: logger.TextFormat,
		Output: os.Stderr,
	})
	if err == nil {
		logger.SetGlobal(log)
	}
}

// openStore opens the configured storage backend. The mysql backend reads
// its DSN from the environment (DATABASE_DSN, optionally via a .env file);
// the memory backend is a process-local store for demos and experiments.
func openStore() (store.Store, func(), error) {
	switch viper.GetString("store") {
	case "memory":
		return memstore.New(), func() {}, nil
	case "mysql", "":
		st, err := mysql.OpenFromEnv()
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q (valid: mysql, memory)", viper.GetString("store"))
	}
}

// runWithStore opens the configured store, runs fn, and releases the
// store afterwards. Every subcommand funnels through here.
func runWithStore(fn func(ctx context.Context, st store.Store) error) error {
	st, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(context.Background(), st)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
