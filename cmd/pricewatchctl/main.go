// Command pricewatchctl is the operator CLI for the price-monitoring
// system: schedule management and one-shot scrape diagnostics against the
// same store and scrape-engine packages the daemon uses (§6/§7). It never
// duplicates scheduling or extraction logic — it calls straight into
// internal/scheduler and internal/scrape/engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pricewatch/pricewatch/internal/config"
)

var cfgFile string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pricewatchctl",
		Short: "Operate the pricewatch scheduler and scrape engine from the command line",
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "path to configuration file")

	root.AddCommand(newScheduleCommand())
	root.AddCommand(newScrapeCommand())

	return root
}

// loadConfig reads the daemon's TOML configuration through the same loader
// pricewatchd uses, so PRICEWATCH_* environment variables override keys
// identically in both binaries (§5 config precedence).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	return cfg, nil
}
