package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/fhirsql"
	"github.com/pthm/fhirsql/internal/cli"
	"github.com/pthm/fhirsql/internal/runner"
	"github.com/pthm/fhirsql/pkg/dialect"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = slog.New(slog.DiscardHandler)

	// Persistent flags
	cfgFile      string
	verbose      int
	quiet        bool
	noColor      bool
	dialectName  string
	resourceType string
)

var rootCmd = &cobra.Command{
	Use:   "fhirsql",
	Short: "FHIRPath to SQL compiler",
	Long: `fhirsql - FHIRPath to SQL compiler

fhirsql compiles FHIRPath expressions into a single SQL statement that
evaluates the expression for every resource of a type at once, on
PostgreSQL or SQLite.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" || cmd.Name() == "license" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		cfg.Dialect = resolveString(dialectName, cfg.Dialect)
		cfg.ResourceType = resolveString(resourceType, cfg.ResourceType)

		cli.ConfigureColor(os.Stdout, noColor)
		logger, err = cli.NewLogger(cmd.ErrOrStderr(), cfg.Log, verbose, quiet)
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}
		logger.Debug("configuration loaded",
			slog.String("config", configPath),
			slog.String("dialect", cfg.Dialect),
		)
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupExpression = "expression"
	groupData       = "data"
	groupUtility    = "utility"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover fhirsql.yaml)")
	pf.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.StringVar(&dialectName, "dialect", "", "SQL dialect: postgres or sqlite")
	pf.StringVar(&resourceType, "resource-type", "", "resource type for expressions that do not start with one")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupExpression, Title: "Expressions:"},
		&cobra.Group{ID: groupData, Title: "Data:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	compileCmd.GroupID = groupExpression
	explainCmd.GroupID = groupExpression
	runCmd.GroupID = groupExpression
	rootCmd.AddCommand(compileCmd, explainCmd, runCmd)

	loadCmd.GroupID = groupData
	doctorCmd.GroupID = groupData
	rootCmd.AddCommand(loadCmd, doctorCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	licenseCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd, versionCmd, licenseCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

func configuredDialect() (dialect.Dialect, error) {
	d, err := fhirsql.DialectByName(cfg.Dialect)
	if err != nil {
		return nil, cli.ConfigError("dialect", err)
	}
	return d, nil
}

// compilerOptions returns the compiler options implied by flags and config.
func compilerOptions() []fhirsql.Option {
	opts := []fhirsql.Option{fhirsql.WithLogger(logger)}
	if cfg.ResourceType != "" {
		opts = append(opts, fhirsql.WithResourceType(cfg.ResourceType))
	}
	return opts
}

func newCompiler() (*fhirsql.Compiler, error) {
	d, err := configuredDialect()
	if err != nil {
		return nil, err
	}
	c, err := fhirsql.New(d, compilerOptions()...)
	if err != nil {
		return nil, cli.ConfigError("creating compiler", err)
	}
	return c, nil
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return dsn, nil
}

func openDB(ctx context.Context, flagDSN string) (*runner.DB, error) {
	dsn, err := resolveDSN(flagDSN)
	if err != nil {
		return nil, err
	}
	db, err := runner.Open(ctx, runner.Config{
		Dialect: cfg.Dialect,
		Driver:  cfg.Database.Driver,
		DSN:     dsn,
	})
	if err != nil {
		if errors.Is(err, fhirsql.ErrUnknownDialect) {
			return nil, cli.ConfigError("dialect", err)
		}
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return db, nil
}
