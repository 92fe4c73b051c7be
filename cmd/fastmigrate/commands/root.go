// Package commands implements the CLI commands.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/config"
	"github.com/satishbabariya/fastmigrate/internal/debug"
	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/internal/version"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

// pathFlags are the flags shared by every command that touches the
// database or the migrations directory.
type pathFlags struct {
	db         string
	migrations string
	configFile string
}

func (f *pathFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.db, "db", config.DefaultDBPath, "Path to the SQLite database file")
	cmd.Flags().StringVar(&f.migrations, "migrations", config.DefaultMigrationsDir, "Path to the migrations directory")
	cmd.Flags().StringVar(&f.configFile, "config", "", "Path to config file (default: .fastmigrate)")
}

// resolve layers the config file under the flags: a flag the user actually
// set wins over the config file, which wins over the defaults.
func (f *pathFlags) resolve(cmd *cobra.Command) (dbPath, migrationsDir string, err error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return "", "", err
	}
	dbPath, migrationsDir = cfg.DBPath, cfg.MigrationsDir
	if cmd.Flags().Changed("db") {
		dbPath = f.db
	}
	if cmd.Flags().Changed("migrations") {
		migrationsDir = f.migrations
	}
	return dbPath, migrationsDir, nil
}

// Execute is the entry point for the CLI.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	var (
		paths       pathFlags
		dryRun      bool
		interactive bool
		verbose     bool
		preBackup   bool
	)

	cmd := &cobra.Command{
		Use:           "fastmigrate",
		Short:         "Structured migration of data in SQLite databases",
		Long:          "fastmigrate tracks a database's schema version and brings it forward by running an ordered sequence of migration scripts.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			debug.Init(verbose)
			dbPath, migrationsDir, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			return runMigrations(cmd, dbPath, migrationsDir, fastmigrate.Options{
				Verbose:         verbose,
				DryRun:          dryRun,
				Interactive:     interactive,
				BackupBeforeRun: preBackup,
			})
		},
	}

	paths.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show which migrations would be run without executing them")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Prompt for confirmation before each migration")
	cmd.Flags().BoolVar(&preBackup, "backup", false, "Take an extra backup before the first migration runs")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Emit debug-level progress")

	cmd.AddCommand(newCreateDBCommand())
	cmd.AddCommand(newEnrollCommand())
	cmd.AddCommand(newBackupCommand())
	cmd.AddCommand(newVersionsCommand())
	cmd.AddCommand(newWatchCommand())

	return cmd
}

func runMigrations(cmd *cobra.Command, dbPath, migrationsDir string, opts fastmigrate.Options) error {
	if opts.Interactive {
		opts.Confirm = ui.Confirm
	}
	opts.OnApply = func(ordinal int, name string) {
		fmt.Printf("Applying migration %s: %s\n", ui.Highlight(fmt.Sprintf("%04d", ordinal)), name)
	}

	res, err := fastmigrate.RunMigrations(cmd.Context(), dbPath, migrationsDir, opts)
	if err != nil {
		reportFailure(err)
		return err
	}

	switch {
	case opts.DryRun && len(res.Pending) > 0:
		ui.PrintInfo("Dry run: %d migration(s) would be applied to %s", len(res.Pending), dbPath)
		rows := make([][]string, 0, len(res.Pending))
		for _, s := range res.Pending {
			rows = append(rows, []string{fmt.Sprintf("%04d", s.Ordinal), s.Name, s.Kind})
		}
		ui.PrintTable([]string{"Ordinal", "Script", "Kind"}, rows)
	case res.Declined:
		ui.PrintWarning("Stopped before migration %04d at operator request (version %d)", res.Pending[res.Applied].Ordinal, res.FinalVersion)
	case res.Applied == 0:
		ui.PrintSuccess("Database is up to date (version %d)", res.FinalVersion)
	default:
		ui.PrintSuccess("Applied %d migration(s), database now at version %d", res.Applied, res.FinalVersion)
	}
	return nil
}

func reportFailure(err error) {
	var scriptErr *fastmigrate.ScriptError
	var restoreErr *fastmigrate.RestoreError

	switch {
	case errors.Is(err, fastmigrate.ErrUnmanaged):
		ui.PrintError("%v", err)
		ui.PrintInfo("Run %s to bring the database under version management", ui.Highlight("fastmigrate enroll"))
	case errors.As(err, &restoreErr):
		ui.PrintError("%v", err)
	case errors.As(err, &scriptErr):
		ui.PrintError("Migration %04d failed (%s): %v", scriptErr.Ordinal, scriptErr.Reason, err)
		ui.PrintInfo("Database restored to its pre-migration state")
	default:
		ui.PrintError("%v", err)
	}
}
