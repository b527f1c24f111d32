package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modlab",
	Short: "Manage game mods: scan, enable, disable, restore",
	Long: `modlab discovers mod packages in your download folders, relocates them
into each game's mod directory, and swaps them in and out of the game's
asset files with original-file backups.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("game", "g", "", "Game package name to operate on")
	rootCmd.PersistentFlags().String("config", ".", "Directory holding the .env config file")
}
