package cli

import (
	"github.com/spf13/cobra"

	"github.com/soyeahso/valet/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("valet " + version.String())
		},
	}
}
