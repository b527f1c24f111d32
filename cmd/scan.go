package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/gameconfig"
	"modlab/logger"
	"modlab/scanner"
	"modlab/ui"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover mods in the source directories",
	Long: `Walks the configured source directories, relocates archives that
belong to the selected game into its mod directory, and refreshes the
mod database.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		if noTUI {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			result, err := a.scan.Scan(ctx, a.cfg.ScanSources(), game, nil)
			if err != nil {
				logger.Log.Fatalw("Scan failed", zap.Error(err))
			}
			printScanResult(result)
			return
		}

		model := initialScanModel(a, game)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			logger.Log.Fatalw("Scan UI failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("no-tui", false, "Print plain output instead of the progress UI")
}

func printScanResult(result *scanner.Result) {
	fmt.Println(ui.Bold(scanSummary(result)))
	for _, mod := range result.BlockedDeletes {
		fmt.Println(ui.Warn(fmt.Sprintf("  still enabled but missing on disk: %s", mod.Name)))
	}
	for _, path := range result.GameUpdated {
		fmt.Println(ui.Warn(fmt.Sprintf("  game updated under an enabled mod: %s", path)))
	}
	for _, err := range result.Errors {
		fmt.Println(ui.Error(fmt.Sprintf("  %v", err)))
	}
}

func scanSummary(result *scanner.Result) string {
	return fmt.Sprintf("Scan complete: %d added, %d updated, %d removed, %d unchanged, %d relocated",
		len(result.Added), len(result.Updated), len(result.Removed), result.Unchanged, len(result.Relocated))
}

// runScanWithEvents drives one scan pass, forwarding progress into the TUI
// channel.
func runScanWithEvents(a *app, game gameconfig.GameInfo, progress chan<- ScanProgressMsg) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan scanner.Event, 64)
	done := make(chan *scanner.Result, 1)
	go func() {
		result, err := a.scan.Scan(ctx, a.cfg.ScanSources(), game, events)
		if err != nil {
			logger.Log.Errorw("Scan failed", zap.Error(err))
		}
		close(events)
		done <- result
	}()

	for event := range events {
		progress <- ScanProgressMsg{
			Type:  "file",
			File:  event.File,
			Index: event.Index,
			Total: event.Total,
		}
	}
	result := <-done
	if result != nil {
		for _, mod := range result.BlockedDeletes {
			progress <- ScanProgressMsg{Type: "warn", Message: "still enabled but missing: " + mod.Name}
		}
		for _, path := range result.GameUpdated {
			progress <- ScanProgressMsg{Type: "warn", Message: "game updated under mod: " + path}
		}
		for _, err := range result.Errors {
			progress <- ScanProgressMsg{Type: "error", Message: err.Error()}
		}
		progress <- ScanProgressMsg{Type: "summary", Message: scanSummary(result)}
	}
}
