package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

func newBackupCommand() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take a timestamped backup of the database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			backupPath, err := fastmigrate.BackupDatabase(dbPath)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintSuccess("Backup written to %s", backupPath)
			return nil
		},
	}

	paths.register(cmd)
	return cmd
}
