package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/config"
	"modlab/helper"
	"modlab/logger"
)

// helperdCmd represents the helperd command
var helperdCmd = &cobra.Command{
	Use:   "helperd",
	Short: "Run the privileged helper process",
	Long: `Serves file operations over the helper socket. Run this under an
account with broader filesystem rights than the main process; the
main process connects to it automatically when present.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
		}

		server := helper.NewServer(cfg.HelperSocket)
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-stop
			server.Close()
		}()

		if err := server.Serve(); err != nil {
			logger.Log.Fatalw("Helper exited", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(helperdCmd)
}
