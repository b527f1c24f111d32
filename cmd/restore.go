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

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Disable every enabled mod and restore all original game files",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		mods, err := a.store.EnabledMods(game.PackageName)
		if err != nil {
			logger.Log.Fatalw("Failed to query enabled mods", zap.Error(err))
		}
		if len(mods) == 0 {
			fmt.Println(ui.Dim("No mods are enabled."))
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ids := make([]uint, len(mods))
		for i, mod := range mods {
			ids[i] = mod.ID
		}
		result := a.orch.DisableAll(ctx, ids, game)
		fmt.Println(ui.Bold(fmt.Sprintf("Restored %d of %d mods", len(result.Succeeded), len(ids))))
		for id, err := range result.Failed {
			fmt.Println(ui.Error(fmt.Sprintf("mod %d failed: %v", id, err)))
		}
		if len(result.Failed) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
