package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/internal/watch"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

func newWatchCommand() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Apply pending migrations whenever new scripts land",
		Long:  "Watch the migrations directory and re-run pending migrations when scripts are added. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, migrationsDir, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}

			apply := func() error {
				return runMigrations(cmd, dbPath, migrationsDir, fastmigrate.Options{})
			}

			watcher, err := watch.NewWatcher(migrationsDir, apply)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintInfo("Watching %s for new migrations (Ctrl+C to stop)", migrationsDir)
			return watcher.Start(cmd.Context())
		},
	}

	paths.register(cmd)
	return cmd
}
