package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dataDir string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "leadgen-engine",
	Short:         "Scrapes job postings into contact leads and runs outreach campaigns",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "engine data directory (default $LEADGEN_DATA_DIR or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(scrapeCommand())
	rootCmd.AddCommand(campaignCommand())
	rootCmd.AddCommand(validateCommand())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
