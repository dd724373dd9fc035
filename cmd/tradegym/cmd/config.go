package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradegym/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files for simulations.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  tradegym config init -o my-config.yaml
  tradegym config validate -f my-config.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Long: `Create a new configuration file with default settings.

Example:
  tradegym config init -o simulation.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, output)
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "simulation.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Check if a configuration file is valid and can be loaded.

Example:
  tradegym config validate -f simulation.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, path)
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	configCmd.AddCommand(initCmd, validateCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, output string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(output); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  tradegym run -f %s\n", output)
	return nil
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
	fmt.Fprintf(out, "  Wallet: %s %s\n", cfg.InitialCash().StringFixed(2), cfg.Wallet.Currency)
	for _, c := range cfg.Contracts {
		fmt.Fprintf(out, "  Contract: %s (x%d, margin %.2f%%, tick %g)\n", c.Code, c.Multiplier, c.MarginRate*100, c.TickSize)
	}
	for _, s := range cfg.Series {
		fmt.Fprintf(out, "  Series: %s every %s from %s\n", s.Code, s.Duration(), s.File)
	}
	fmt.Fprintf(out, "  Trader: %s on %s, slippage %g ticks\n", cfg.Trader.Name, cfg.Trader.PriceField, cfg.Trader.Slippage)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}
