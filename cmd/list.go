package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/logger"
	"modlab/ui"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known mods for a game",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		mods, err := a.store.ModsByGame(game.PackageName)
		if err != nil {
			logger.Log.Fatalw("Failed to query mods", zap.Error(err))
		}
		if len(mods) == 0 {
			fmt.Println(ui.Dim("No mods found. Run 'modlab scan' first."))
			return
		}
		fmt.Println(ui.Bold(fmt.Sprintf("Mods for %s:", game.GameName)))
		for _, mod := range mods {
			line := fmt.Sprintf("  %4d  %-40s %-12s %s", mod.ID, mod.Name, mod.ModType, ui.EnabledMarker(mod.IsEnable))
			if mod.IsEncrypted && mod.Password == "" {
				line += " " + ui.Warn("[password required]")
			}
			fmt.Println(line)
			if mod.Description != "" {
				fmt.Println(ui.Dim("        " + mod.Description))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
