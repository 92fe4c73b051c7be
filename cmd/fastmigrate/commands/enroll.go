package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

func newEnrollCommand() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Bring an existing database under version management",
		Long:  "Snapshot the database's current schema into 0001-initial-schema.sql and stamp the database at version 1.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, migrationsDir, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			v, err := fastmigrate.EnrollDatabase(cmd.Context(), dbPath, migrationsDir)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintSuccess("Database %s enrolled at version %d", dbPath, v)
			ui.PrintInfo("Initial schema written to %s", ui.Highlight(migrationsDir+"/0001-initial-schema.sql"))
			return nil
		},
	}

	paths.register(cmd)
	return cmd
}
