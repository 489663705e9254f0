package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"goldref/internal/cli"
	"goldref/internal/cli/commands"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "goldref",
		Short: "Golden-reference regression verification for circuit simulations",
		Long: `Capture the waveforms a simulation engine produces for a set of circuit files as golden baselines,
then verify later engine builds against them under a numeric tolerance.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	// Create commands and register them
	cmds := commands.NewCommands()
	cmds.Register(rootCmd, &flags)

	// Interrupt stops the batch between cases and shuts the engine down
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
