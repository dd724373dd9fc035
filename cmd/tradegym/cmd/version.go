package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Display the current version of the tradegym CLI.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tradegym version %s\n", version)
			fmt.Fprintln(out, "A deterministic futures trading simulator")
			fmt.Fprintln(out, "https://github.com/rustyeddy/tradegym")
		},
	}
}
