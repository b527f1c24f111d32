package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modlab/errs"
	"modlab/ui"
)

// disableCmd represents the disable command
var disableCmd = &cobra.Command{
	Use:   "disable [modID...]",
	Short: "Disable mods: verify and restore the original game files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result := a.orch.DisableAll(ctx, parseModIDs(args), game)
		for _, id := range result.Succeeded {
			fmt.Println(ui.Success(fmt.Sprintf("disabled mod %d", id)))
		}
		for id, err := range result.Failed {
			if errors.Is(err, errs.ErrGameFileChanged) {
				fmt.Println(ui.Error(fmt.Sprintf("mod %d: game file changed externally, restore blocked (%v)", id, err)))
				continue
			}
			fmt.Println(ui.Error(fmt.Sprintf("mod %d failed: %v", id, err)))
		}
		if len(result.Failed) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(disableCmd)
}
