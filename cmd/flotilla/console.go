package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flotilla-io/flotilla/internal/cli"
	"github.com/flotilla-io/flotilla/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive operator console",
	Long: `Starts the fleet console: resolve nodes with target expressions, inject
commands, open raw shells, and transfer files, with every node's output
demultiplexed back to this terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		app, err := cli.Bootstrap(ctx, options(cmd))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		c, err := console.New(&console.Context{
			Logger:    app.Logger,
			Resolver:  app.Resolver,
			Sessions:  app.Sessions,
			Provider:  app.Provider,
			Templates: app.Templates,
			Editor:    app.Templates,
			Out:       app.Console,
			In:        os.Stdin,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if err := c.Run(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	// The console is the default action.
	rootCmd.Run = consoleCmd.Run
}
