package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/logger"
	"modlab/ui"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a game's post-launch hook",
	Long: `Some games rewrite their own mod bookkeeping on startup. Run this
right after launching the game; it keeps the modded state asserted
for the startup window and then exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.orch.StartGame(ctx, game); err != nil && ctx.Err() == nil {
			logger.Log.Fatalw("Start hook failed", zap.Error(err))
		}
		fmt.Println(ui.Success("start hook finished"))
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
