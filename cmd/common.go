package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modlab/access"
	"modlab/backup"
	"modlab/config"
	"modlab/db"
	"modlab/enabler"
	"modlab/gameconfig"
	"modlab/helper"
	"modlab/logger"
	"modlab/scanner"
	"modlab/specialgame"
)

// app bundles the wired-up components every command works with.
type app struct {
	cfg    config.Config
	store  *db.Store
	games  *gameconfig.Manager
	client *helper.Client
	ops    *access.Manager
	hooks  *specialgame.Registry
	scan   *scanner.Scanner
	engine *backup.Engine
	orch   *enabler.Orchestrator
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(cmd *cobra.Command) *app {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	db.InitDatabase(cfg.DatabasePath)
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))
	store := db.Default()

	client := helper.NewClient(cfg.HelperSocket)
	if err := client.Connect(); err != nil {
		logger.Log.Debugw("Helper not connected, lower tiers only", zap.Error(err))
	}

	// Only the app's own area is direct; the rest of shared storage needs a
	// granted tree or the helper.
	resolver := access.NewResolver(
		[]string{cfg.AppPath},
		cfg.GrantedTrees,
		client,
	)
	ops := access.NewManager(resolver)

	hooks := specialgame.NewRegistry(
		specialgame.NewArknights(ops, cfg.GameCheckFilePath),
		specialgame.NewProjectSnow(ops, store),
	)

	games := loadGames(cfg, hooks)

	engine := backup.New(ops, store, cfg.BackupPath)
	scan := scanner.New(ops, store, hooks, client, scanner.Options{
		IconDir:   cfg.IconPath,
		ImagesDir: cfg.ImagesPath,
	})
	orch := enabler.New(ops, store, engine, hooks, enabler.Options{
		UnzipDir:  cfg.UnzipPath,
		BackupDir: cfg.BackupPath,
	})

	return &app{
		cfg:    cfg,
		store:  store,
		games:  games,
		client: client,
		ops:    ops,
		hooks:  hooks,
		scan:   scan,
		engine: engine,
		orch:   orch,
	}
}

// loadGames reads every descriptor in the GameConfig directory, letting each
// title's hook adjust its own entry.
func loadGames(cfg config.Config, hooks *specialgame.Registry) *gameconfig.Manager {
	infos, errs := gameconfig.LoadAll(cfg.GameConfigPath, cfg.StorageRoot)
	for _, err := range errs {
		logger.Log.Warnw("Skipping game config", zap.Error(err))
	}
	for i, info := range infos {
		if hook, found := hooks.For(info.PackageName); found {
			infos[i] = hook.UpdateGameInfo(info)
		}
	}
	return gameconfig.NewManager(infos)
}

// selectGame resolves the --game flag against the loaded descriptors. With a
// single configured game the flag may be omitted.
func (a *app) selectGame(cmd *cobra.Command) gameconfig.GameInfo {
	pkg, _ := cmd.Flags().GetString("game")
	if pkg == "" {
		if len(a.games.Games()) == 1 {
			game := a.games.Games()[0]
			a.games.Select(game.PackageName)
			return game
		}
		logger.Log.Fatal("Error: --game is required when more than one game is configured.")
	}
	game, found := a.games.Select(pkg)
	if !found {
		logger.Log.Fatalw("Unknown game package", zap.String("package", pkg))
	}
	if hook, hasHook := a.hooks.For(game.PackageName); hasHook {
		if err := hook.OnSelectGame(game); err != nil {
			logger.Log.Warnw("Game-select hook failed", zap.Error(err))
		}
	}
	return game
}

func (a *app) close() {
	a.client.Disconnect()
}
