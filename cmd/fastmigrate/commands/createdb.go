package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

func newCreateDBCommand() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "createdb",
		Short: "Create a managed database stamped at version 0",
		Long:  "Create a new SQLite database with version storage. An existing managed database is left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			v, err := fastmigrate.CreateDatabase(cmd.Context(), dbPath)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintSuccess("Database %s is managed at version %d", dbPath, v)
			return nil
		},
	}

	paths.register(cmd)
	return cmd
}
