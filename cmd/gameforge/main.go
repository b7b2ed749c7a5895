// Command gameforge turns a game idea into a playable browser game through
// clarification, planning and code generation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gameforge/pkg/version"
)

//nolint:gochecknoglobals // cobra flag targets
var (
	configPath string
	debug      bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gameforge",
		Short: "Generate browser games from a one-line idea",
		Long: `gameforge asks clarifying questions about a game idea, plans the game,
and writes a runnable HTML/JavaScript implementation.

Examples:
  # Interactive session
  gameforge run

  # Scripted session
  id=$(gameforge new "a snake game with power-ups")
  gameforge advance $id
  gameforge advance $id --message "single player, arrow keys"
  gameforge export $id --dir ./snake`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./gameforge.yaml if present)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(),
		newNewCmd(),
		newAdvanceCmd(),
		newShowCmd(),
		newListCmd(),
		newExportCmd(),
		newServeCmd(),
		newSecretsCmd(),
		newUsageCmd(),
		newConfigCmd(),
		newEventsCmd(),
	)
	return root
}
