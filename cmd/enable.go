package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/errs"
	"modlab/logger"
	"modlab/ui"
)

// enableCmd represents the enable command
var enableCmd = &cobra.Command{
	Use:   "enable [modID...]",
	Short: "Enable mods: back up originals and place the mod files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(cmd)
		defer a.close()
		game := a.selectGame(cmd)

		ids := parseModIDs(args)
		password, _ := cmd.Flags().GetString("password")
		if password != "" {
			for _, id := range ids {
				if err := a.orch.SetPassword(id, password); err != nil {
					logger.Log.Fatalw("Password rejected", zap.Uint("mod", id), zap.Error(err))
				}
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result := a.orch.EnableAll(ctx, ids, game)
		for _, id := range result.Succeeded {
			fmt.Println(ui.Success(fmt.Sprintf("enabled mod %d", id)))
		}
		for id, err := range result.Failed {
			if errors.Is(err, errs.ErrPasswordRequired) {
				fmt.Println(ui.Warn(fmt.Sprintf("mod %d needs a password; rerun with --password", id)))
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
	rootCmd.AddCommand(enableCmd)
	enableCmd.Flags().StringP("password", "p", "", "Password for encrypted mod archives")
}

func parseModIDs(args []string) []uint {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			logger.Log.Fatalw("Mod id must be a number", zap.String("arg", arg))
		}
		ids = append(ids, uint(id))
	}
	return ids
}
