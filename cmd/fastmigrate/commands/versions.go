package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/fastmigrate/internal/ui"
	"github.com/satishbabariya/fastmigrate/pkg/fastmigrate"
)

func newVersionsCommand() *cobra.Command {
	var paths pathFlags

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show the tool version and the database's stored version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _, err := paths.resolve(cmd)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			versions, err := fastmigrate.CurrentVersions(cmd.Context(), dbPath)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			ui.PrintTable([]string{"Component", "Version"}, [][]string{
				{"fastmigrate", versions.Tool},
				{dbPath, strconv.Itoa(versions.Database)},
			})
			return nil
		},
	}

	paths.register(cmd)
	return cmd
}
