package specialgame

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"modlab/access"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
	"modlab/logger"
)

const (
	// rewriteWindow is how long the manifest keeps being re-asserted after
	// game start. The game rewrites the file once during startup; winning
	// that race needs repetition, not a single write.
	rewriteWindow   = 25 * time.Second
	rewriteInterval = 500 * time.Millisecond
)

// ProjectSnow injects mod pak entries into the game's pak manifest. The game
// regenerates the manifest on startup, so the merged content is rewritten for
// a bounded window after launch.
type ProjectSnow struct {
	Base
	ops   access.FileOps
	store *db.Store
}

func NewProjectSnow(ops access.FileOps, store *db.Store) *ProjectSnow {
	return &ProjectSnow{ops: ops, store: store}
}

func (p *ProjectSnow) Name() string { return "projectsnow" }

func (p *ProjectSnow) Match(packageName string) bool {
	return matchSubstring(packageName, "projectsnow") || matchSubstring(packageName, "ssrpg")
}

func (p *ProjectSnow) RecognizesMember(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pak")
}

func (p *ProjectSnow) manifestPath(game gameconfig.GameInfo) string {
	return filepath.Join(game.GamePath, "files", "manifest.json")
}

func (p *ProjectSnow) AfterEnable(game gameconfig.GameInfo, mod *db.Mod) error {
	return p.writeMerged(game)
}

func (p *ProjectSnow) BeforeDisable(game gameconfig.GameInfo, mod *db.Mod, backups []db.Backup) error {
	// The restored manifest comes back through the backup engine; nothing to
	// patch here.
	return nil
}

// OnStartGame keeps re-asserting the merged manifest until the window closes
// or ctx is cancelled.
func (p *ProjectSnow) OnStartGame(ctx context.Context, game gameconfig.GameInfo) error {
	deadline := time.Now().Add(rewriteWindow)
	ticker := time.NewTicker(rewriteInterval)
	defer ticker.Stop()
	for {
		if err := p.writeMerged(game); err != nil {
			logger.Log.Warnw("Manifest rewrite failed", "game", game.PackageName, "error", err)
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// writeMerged reads the live manifest and prepends pak entries for every
// enabled mod so the game loads them ahead of its own list.
func (p *ProjectSnow) writeMerged(game gameconfig.GameInfo) error {
	path := p.manifestPath(game)
	doc := map[string]any{}
	if text := p.ops.ReadText(path); text != "" {
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return err
		}
	}
	existing, _ := doc["paks"].([]any)

	mods, err := p.store.EnabledMods(game.PackageName)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	var merged []any
	for _, mod := range mods {
		for _, gameFilePath := range mod.GameFilesPath {
			name := filepath.Base(gameFilePath)
			if !p.RecognizesMember(name) || seen[name] {
				continue
			}
			seen[name] = true
			merged = append(merged, map[string]any{"name": name, "optional": false})
		}
	}
	for _, raw := range existing {
		pak, isMap := raw.(map[string]any)
		if !isMap {
			merged = append(merged, raw)
			continue
		}
		name, _ := pak["name"].(string)
		if seen[name] {
			continue
		}
		merged = append(merged, raw)
	}
	doc["paks"] = merged

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if !p.ops.Write(filepath.Dir(path), filepath.Base(path), data) {
		return errs.Pathf("write manifest", path, errs.ErrWriteFailed)
	}
	return nil
}
