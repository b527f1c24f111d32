// Package enabler drives the mod state machine: Disabled -> Enabling ->
// Enabled -> Disabling -> Disabled. Each transition is backup-then-place on
// the way up and verify-then-restore on the way down; error transitions
// return to the prior stable state.
package enabler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"modlab/access"
	"modlab/archive"
	"modlab/backup"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
	"modlab/logger"
	"modlab/specialgame"
)

type Orchestrator struct {
	ops    *access.Manager
	store  *db.Store
	engine *backup.Engine
	hooks  *specialgame.Registry

	unzipDir  string
	backupDir string

	// pathLocks serializes operations per game file path. Two mods touching
	// the same path must never race on its backup record.
	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

type Options struct {
	UnzipDir  string
	BackupDir string
}

func New(ops *access.Manager, store *db.Store, engine *backup.Engine, hooks *specialgame.Registry, opts Options) *Orchestrator {
	return &Orchestrator{
		ops:       ops,
		store:     store,
		engine:    engine,
		hooks:     hooks,
		unzipDir:  opts.UnzipDir,
		backupDir: opts.BackupDir,
		pathLocks: map[string]*sync.Mutex{},
	}
}

// lockPaths takes the per-path locks in sorted order and returns the release.
func (o *Orchestrator) lockPaths(paths []string) func() {
	unique := map[string]bool{}
	var sorted []string
	for _, p := range paths {
		if !unique[p] {
			unique[p] = true
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)
	locks := make([]*sync.Mutex, 0, len(sorted))
	o.mu.Lock()
	for _, p := range sorted {
		lock, found := o.pathLocks[p]
		if !found {
			lock = &sync.Mutex{}
			o.pathLocks[p] = lock
		}
		locks = append(locks, lock)
	}
	o.mu.Unlock()
	for _, lock := range locks {
		lock.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// checkTier refuses the operation when any target path is unreachable.
func (o *Orchestrator) checkTier(paths []string) error {
	for _, p := range paths {
		if o.ops.Resolve(filepath.Dir(p)) == access.TierNone {
			return errs.Pathf("access", p, errs.ErrNoPermission)
		}
	}
	return nil
}

// Enable places the mod's payload over its game files.
func (o *Orchestrator) Enable(ctx context.Context, modID uint, game gameconfig.GameInfo) error {
	mod, err := o.store.GetMod(modID)
	if err != nil {
		return err
	}
	if mod.IsEnable {
		return nil
	}
	if len(mod.ModFiles) == 0 || len(mod.GameFilesPath) == 0 {
		return fmt.Errorf("%w: %s", errs.ErrModMissingPayload, mod.Name)
	}
	if err := o.checkTier(mod.GameFilesPath); err != nil {
		return err
	}
	if mod.IsEncrypted && mod.Password == "" {
		return fmt.Errorf("%w: %s", errs.ErrPasswordRequired, mod.Name)
	}

	payload, err := o.stage(ctx, mod)
	if err != nil {
		return err
	}

	unlock := o.lockPaths(mod.GameFilesPath)
	defer unlock()

	if game.EnableBackup {
		if _, err := o.engine.BackupOriginals(mod, game, payload); err != nil {
			return err
		}
	}

	var placed []string
	for _, gameFilePath := range mod.GameFilesPath {
		if err := ctx.Err(); err != nil {
			o.rollback(mod, game, placed)
			return err
		}
		staged := payload[gameFilePath]
		if !o.ops.Copy(staged, gameFilePath) {
			o.rollback(mod, game, placed)
			return errs.Pathf("place", gameFilePath, errs.ErrCopyFailed)
		}
		placed = append(placed, gameFilePath)
		o.recordReplacement(mod, game, gameFilePath, staged)
	}

	if hook, found := o.hooks.For(game.PackageName); found {
		if err := hook.AfterEnable(game, mod); err != nil {
			// Hook work is game-side bookkeeping; the files are placed.
			logger.Log.Warnw("Post-enable hook failed", "hook", hook.Name(), "mod", mod.Name, "error", err)
		}
	}
	if err := o.store.SetModEnabled(mod.ID, true); err != nil {
		return err
	}
	logger.Log.Infow("Mod enabled", "mod", mod.Name, "files", len(mod.GameFilesPath))
	return nil
}

// rollback restores originals over partially placed files so a failed enable
// never leaves a half-modded game.
func (o *Orchestrator) rollback(mod *db.Mod, game gameconfig.GameInfo, placed []string) {
	if len(placed) == 0 || !game.EnableBackup {
		return
	}
	partial := &db.Mod{Model: mod.Model, Name: mod.Name, GameFilesPath: placed}
	if err := o.engine.RestoreOriginals(partial, game, nil); err != nil {
		logger.Log.Errorw("Rollback failed", "mod", mod.Name, "error", err)
	}
}

func (o *Orchestrator) recordReplacement(mod *db.Mod, game gameconfig.GameInfo, gameFilePath, staged string) {
	rec := &db.ReplacedFile{
		ModID:           mod.ID,
		Filename:        filepath.Base(gameFilePath),
		GameFilePath:    gameFilePath,
		MD5:             o.ops.MD5(staged),
		GamePackageName: game.PackageName,
		ReplaceTime:     nowUnix(),
	}
	if err := o.store.CreateReplaced(rec); err != nil {
		logger.Log.Warnw("Replacement record failed", "path", gameFilePath, "error", err)
	}
}

// Disable verifies the live files still hold this mod's content, then puts
// the originals back.
func (o *Orchestrator) Disable(ctx context.Context, modID uint, game gameconfig.GameInfo) error {
	mod, err := o.store.GetMod(modID)
	if err != nil {
		return err
	}
	if !mod.IsEnable {
		return nil
	}
	if err := o.checkTier(mod.GameFilesPath); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := o.lockPaths(mod.GameFilesPath)
	defer unlock()

	if hook, found := o.hooks.For(game.PackageName); found {
		backups, err := o.engine.BackupsForMod(mod)
		if err != nil {
			return err
		}
		if err := hook.BeforeDisable(game, mod, backups); err != nil {
			logger.Log.Warnw("Pre-disable hook failed", "hook", hook.Name(), "mod", mod.Name, "error", err)
		}
	}

	if game.EnableBackup {
		if err := o.engine.RestoreOriginals(mod, game, o.stillClaimed(mod, game)); err != nil {
			return err
		}
	} else {
		for _, gameFilePath := range mod.GameFilesPath {
			if !o.ops.Delete(gameFilePath) {
				return errs.Pathf("remove", gameFilePath, errs.ErrDeleteFailed)
			}
		}
	}
	for _, gameFilePath := range mod.GameFilesPath {
		_ = o.store.DeleteReplacedByModAndPath(mod.ID, gameFilePath)
	}
	if err := o.store.SetModEnabled(mod.ID, false); err != nil {
		return err
	}
	logger.Log.Infow("Mod disabled", "mod", mod.Name)
	return nil
}

// stillClaimed reports paths another enabled mod of the same game references.
func (o *Orchestrator) stillClaimed(mod *db.Mod, game gameconfig.GameInfo) func(string) bool {
	enabled, err := o.store.EnabledMods(game.PackageName)
	if err != nil {
		return nil
	}
	claimed := map[string]bool{}
	for _, other := range enabled {
		if other.ID == mod.ID {
			continue
		}
		for _, p := range other.GameFilesPath {
			claimed[p] = true
		}
	}
	return func(gameFilePath string) bool { return claimed[gameFilePath] }
}

// BatchResult reports per-mod outcomes of a batch operation.
type BatchResult struct {
	Succeeded []uint
	Failed    map[uint]error
}

// EnableAll enables the mods one at a time; a failure on one mod does not
// stop the rest.
func (o *Orchestrator) EnableAll(ctx context.Context, modIDs []uint, game gameconfig.GameInfo) BatchResult {
	return o.batch(ctx, modIDs, game, o.Enable)
}

// DisableAll disables the mods one at a time.
func (o *Orchestrator) DisableAll(ctx context.Context, modIDs []uint, game gameconfig.GameInfo) BatchResult {
	return o.batch(ctx, modIDs, game, o.Disable)
}

func (o *Orchestrator) batch(ctx context.Context, modIDs []uint, game gameconfig.GameInfo, op func(context.Context, uint, gameconfig.GameInfo) error) BatchResult {
	result := BatchResult{Failed: map[uint]error{}}
	for _, id := range modIDs {
		if err := ctx.Err(); err != nil {
			result.Failed[id] = err
			continue
		}
		if err := op(ctx, id, game); err != nil {
			result.Failed[id] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// SetPassword stores the password after verifying it opens the payload.
func (o *Orchestrator) SetPassword(modID uint, password string) error {
	mod, err := o.store.GetMod(modID)
	if err != nil {
		return err
	}
	if !mod.IsEncrypted {
		return o.store.SetModPassword(modID, password)
	}
	member, err := firstEncryptedMember(mod)
	if err != nil {
		return err
	}
	if member != "" {
		stream, err := archive.OpenMember(mod.Path, member, password)
		if err != nil {
			return err
		}
		stream.Close()
	}
	return o.store.SetModPassword(modID, password)
}

// firstEncryptedMember finds a member that actually needs the password. Plain
// members open under any password and prove nothing about it.
func firstEncryptedMember(mod *db.Mod) (string, error) {
	members := mod.ModFiles
	if len(members) == 0 {
		listed, err := archive.List(mod.Path)
		if err != nil {
			return "", err
		}
		members = listed
	}
	for _, member := range members {
		stream, err := archive.OpenMember(mod.Path, member, "")
		if err == nil {
			stream.Close()
			continue
		}
		if errors.Is(err, errs.ErrPasswordRequired) || errors.Is(err, errs.ErrWrongPassword) {
			return member, nil
		}
		return "", err
	}
	return "", nil
}

// StartGame runs the game's hook for its post-launch window, if it has one.
func (o *Orchestrator) StartGame(ctx context.Context, game gameconfig.GameInfo) error {
	hook, found := o.hooks.For(game.PackageName)
	if !found {
		return nil
	}
	return hook.OnStartGame(ctx, game)
}
