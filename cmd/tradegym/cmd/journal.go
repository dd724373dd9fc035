package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradegym/journal"
	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	var dbPath string

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Query a SQLite run journal",
		Long: `Query and display trade journal records from a SQLite database.

Subcommands:
  runs           - List journaled run ids
  trades <run>   - Show every trade attempt of a run
  summary <run>  - Summarize a run

Examples:
  tradegym journal runs --db tradegym.sqlite
  tradegym journal trades 0b6c... --db tradegym.sqlite`,
	}
	journalCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./tradegym.sqlite", "path to SQLite journal DB")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled run ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(dbPath, func(j *journal.SQLite) error {
				runs, err := j.ListRuns()
				if err != nil {
					return fmt.Errorf("query runs: %w", err)
				}
				for _, id := range runs {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}

	tradesCmd := &cobra.Command{
		Use:   "trades <run-id>",
		Short: "Show every trade attempt of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(dbPath, func(j *journal.SQLite) error {
				recs, err := j.ListTrades(args[0])
				if err != nil {
					return fmt.Errorf("query trades: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
				return nil
			})
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <run-id>",
		Short: "Summarize a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(dbPath, func(j *journal.SQLite) error {
				trades, err := j.ListTrades(args[0])
				if err != nil {
					return fmt.Errorf("query trades: %w", err)
				}
				equity, err := j.ListEquity(args[0])
				if err != nil {
					return fmt.Errorf("query equity: %w", err)
				}
				if len(trades) == 0 && len(equity) == 0 {
					return fmt.Errorf("run %s not found", args[0])
				}
				fmt.Fprint(cmd.OutOrStdout(), journal.Summarize(args[0], trades, equity))
				return nil
			})
		},
	}

	journalCmd.AddCommand(runsCmd, tradesCmd, summaryCmd)
	return journalCmd
}

func withJournal(path string, fn func(*journal.SQLite) error) error {
	j, err := journal.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()
	return fn(j)
}
