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
	"modlab/watcher"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source directories and rescan on changes",
	Long: `Watches the mod source directories and runs a scan whenever files
are added, removed, or renamed. Bursts of changes collapse into a
single scan.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		w, err := watcher.New(a.cfg.ScanSources())
		if err != nil {
			logger.Log.Fatalw("Failed to start watcher", zap.Error(err))
		}
		defer w.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(ui.Bold("Watching for changes. Ctrl-C to stop."))
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Rescans():
				result, err := a.scan.Scan(ctx, a.cfg.ScanSources(), game, nil)
				if err != nil {
					logger.Log.Warnw("Scan aborted", zap.Error(err))
					continue
				}
				printScanResult(result)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
