package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flotilla-io/flotilla/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Flotilla is an operator console for SSH fleets",
	Long: `Flotilla reconciles declarative cluster templates against live cloud
inventory, then fans commands, interactive shells, and file transfers out to
many nodes at once, demultiplexing their output back to one console.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// options collects the persistent flags for bootstrap.
func options(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	region, _ := cmd.Flags().GetString("region")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{ConfigPath: configPath, Region: region, Debug: debug}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the flotilla config file (default ~/.flotilla/config.yaml)")
	rootCmd.PersistentFlags().String("region", "", "Cloud region, overriding the configured one")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
