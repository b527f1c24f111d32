package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/logger"
	"modlab/ui"
)

// antitamperCmd represents the antitamper command
var antitamperCmd = &cobra.Command{
	Use:       "antitamper [on|off]",
	Short:     "Switch a game's tamper-check file",
	Long:      `Replaces the game's tamper-check file with the content configured in its descriptor (on), or restores the backed-up original (off).`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		if game.AntiTamperFile == "" {
			fmt.Println(ui.Dim("This game has no tamper-check file configured."))
			return
		}
		enable := args[0] == "on"
		if err := a.orch.SetAntiTamper(game, enable); err != nil {
			logger.Log.Fatalw("Anti-tamper switch failed", zap.Error(err))
		}
		if enable {
			fmt.Println(ui.Success("tamper-check file replaced"))
		} else {
			fmt.Println(ui.Success("tamper-check file restored"))
		}
	},
}

func init() {
	rootCmd.AddCommand(antitamperCmd)
}
