package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the tradegym command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "tradegym",
		Short: "A deterministic futures trading simulator",
		Long: `Tradegym replays historical K-line data through a simulated futures
account so trading agents can be tested against realistic margin,
commission and slippage rules.

Complete documentation is available at https://github.com/rustyeddy/tradegym`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity at debug level")

	root.AddCommand(newRunCmd(), newConfigCmd(), newJournalCmd(), newVersionCmd())
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}
