package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/rustyeddy/tradegym/config"
	"github.com/rustyeddy/tradegym/journal"
	"github.com/rustyeddy/tradegym/replay"
	"github.com/rustyeddy/tradegym/sim"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configPath   string
	eventsPath   string
	checkpoint   string
	closeAtEnd   bool
	stopOnReject bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a config file",
		Long: `Run a simulation using settings from a configuration file.

The config file declares the wallet, contracts, K-line series and trader.
Without an events script the clock simply steps through the data; with
one, each OPEN, CLOSE and CLOSE_ALL row is applied when its time comes.

Example:
  tradegym run -f simulation.yaml --events events.csv --close-at-end`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	f.StringVarP(&opts.eventsPath, "events", "e", "", "CSV script of trade events")
	f.StringVar(&opts.checkpoint, "checkpoint", "", "write the final engine state as JSON to this path")
	f.BoolVar(&opts.closeAtEnd, "close-at-end", false, "close every open position when the data runs out")
	f.BoolVar(&opts.stopOnReject, "stop-on-reject", false, "stop at the first rejected trade")
	_ = runCmd.MarkFlagRequired("config")
	return runCmd
}

func runRun(cmd *cobra.Command, opts runOptions) error {
	cfg, err := config.LoadFromFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var events []replay.Event
	if opts.eventsPath != "" {
		loc, err := cfg.Series[0].Location()
		if err != nil {
			return err
		}
		events, err = replay.LoadEventsFile(opts.eventsPath, loc)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
	}

	j, err := sim.OpenJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	mem := journal.NewMemory()
	engine, err := sim.Build(cfg, journal.Tee(j, mem))
	if err != nil {
		_ = j.Close()
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Shutdown()

	sets, err := sim.LoadSeries(cfg)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}
	if err := engine.Activate(sets); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running simulation with config: %s\n", opts.configPath)
	fmt.Fprintf(out, "  Run: %s\n", engine.RunID())
	fmt.Fprintf(out, "  Wallet: %s %s\n", cfg.InitialCash().StringFixed(2), cfg.Wallet.Currency)
	fmt.Fprintf(out, "  Events: %d\n\n", len(events))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := replay.Run(ctx, engine, events, replay.Options{
		CloseAtEnd:   opts.closeAtEnd,
		StopOnReject: opts.stopOnReject,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Fprintf(out, "Stepped %d times, %d trade records (%d rejected)", res.Ticks, len(res.Records), res.Rejected())
	if res.Unapplied > 0 {
		fmt.Fprintf(out, ", %d events after the data", res.Unapplied)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "\nFinal account:\n")
	fmt.Fprintf(out, "  Cash: %s\n", res.Final.Cash.StringFixed(2))
	fmt.Fprintf(out, "  Margin in use: %s\n", res.Final.MarginInUse.StringFixed(2))
	fmt.Fprintf(out, "  Unrealized PnL: %s\n", res.Final.UnrealizedPnL.StringFixed(2))
	fmt.Fprintf(out, "\n%s", mem.Summary(engine.RunID()))

	if opts.checkpoint != "" {
		data, err := json.MarshalIndent(engine.State(), "", "  ")
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		if err := os.WriteFile(opts.checkpoint, data, 0o644); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		fmt.Fprintf(out, "\nCheckpoint saved to: %s\n", opts.checkpoint)
	}

	switch cfg.Journal.Type {
	case "csv":
		fmt.Fprintf(out, "\nResults saved to:\n  - %s\n  - %s\n", cfg.ResolvePath(cfg.Journal.TradesFile), cfg.ResolvePath(cfg.Journal.EquityFile))
	case "sqlite":
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.ResolvePath(cfg.Journal.DBPath))
	}
	return nil
}
