package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/gameconfig"
	"modlab/logger"
	"modlab/ui"
)

// gamesCmd represents the games command
var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List configured games or import a game descriptor",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()

		importPath, _ := cmd.Flags().GetString("import")
		if importPath != "" {
			info, err := gameconfig.LoadFile(importPath, a.cfg.StorageRoot)
			if err != nil {
				logger.Log.Fatalw("Game descriptor rejected", zap.String("file", importPath), zap.Error(err))
			}
			if hook, found := a.hooks.For(info.PackageName); found {
				info = hook.UpdateGameInfo(info)
			}
			if err := gameconfig.WriteFile(info, a.cfg.GameConfigPath); err != nil {
				logger.Log.Fatalw("Failed to store game descriptor", zap.Error(err))
			}
			a.games.Upsert(info)
			fmt.Println(ui.Success(fmt.Sprintf("imported %s (%s)", info.GameName, info.PackageName)))
			return
		}

		games := a.games.Games()
		if len(games) == 0 {
			fmt.Println(ui.Dim("No games configured. Import a descriptor with 'modlab games --import <file>'."))
			return
		}
		for _, game := range games {
			fmt.Printf("%s  %s\n", ui.Bold(game.GameName), ui.Dim(game.PackageName))
			fmt.Printf("  mod dir: %s\n", game.ModSavePath)
			for i, dir := range game.GameFilePath {
				fmt.Printf("  %-12s %s\n", game.ModType[i], dir)
			}
			if game.Tips != "" {
				fmt.Println(ui.Dim("  " + game.Tips))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(gamesCmd)
	gamesCmd.Flags().String("import", "", "Validate and install a game descriptor JSON file")
}
