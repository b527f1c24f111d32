// Package scanner discovers mod candidates in the configured source
// directories, relocates the ones that belong to the selected game, and
// reconciles what it finds against the mod table.
package scanner

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"

	"modlab/access"
	"modlab/db"
	"modlab/gameconfig"
	"modlab/helper"
	"modlab/logger"
	"modlab/specialgame"
)

// skipExtensions are file types never eligible as mod payloads.
var skipExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".mkv": true, ".avi": true,
	".mp3": true, ".flac": true, ".ogg": true, ".wav": true,
	".apk": true, ".apks": true, ".xapk": true,
}

// Event is one progress step, sent as each file is considered.
type Event struct {
	Source string
	File   string
	Index  int
	Total  int
}

// Result summarizes one scan pass.
type Result struct {
	Added     []db.Mod
	Updated   []db.Mod
	Removed   []db.Mod
	Unchanged int

	// BlockedDeletes are enabled mods whose source vanished; they are kept in
	// the table and surfaced instead of being silently deleted.
	BlockedDeletes []db.Mod
	// GameUpdated lists game file paths whose live digest no longer matches
	// the last recorded replacement, meaning the game updated underneath an
	// enabled mod.
	GameUpdated []string
	// Relocated are archives moved into the mod-save directory this pass.
	Relocated []string

	Errors []error
}

// Scanner walks sources for one game at a time.
type Scanner struct {
	ops    *access.Manager
	store  *db.Store
	hooks  *specialgame.Registry
	client *helper.Client

	iconDir   string
	imagesDir string
}

type Options struct {
	IconDir   string
	ImagesDir string
}

func New(ops *access.Manager, store *db.Store, hooks *specialgame.Registry, client *helper.Client, opts Options) *Scanner {
	return &Scanner{
		ops:       ops,
		store:     store,
		hooks:     hooks,
		client:    client,
		iconDir:   opts.IconDir,
		imagesDir: opts.ImagesDir,
	}
}

// Scan runs one full pass: reconcile replacements, relocate candidates from
// the sources, then diff the mod-save directory against the table. Events are
// emitted per considered file when events is non-nil. Cancellation is honored
// between files, never mid-file.
func (s *Scanner) Scan(ctx context.Context, sources []string, game gameconfig.GameInfo, events chan<- Event) (*Result, error) {
	result := &Result{}

	s.reconcileReplaced(game, result)

	index := newAssetIndex(s.ops, game, s.hooks)

	for _, source := range sources {
		if source == game.ModSavePath {
			continue
		}
		if err := s.relocate(ctx, source, game, index, result, events); err != nil {
			return result, err
		}
	}

	if err := s.reconcileMods(ctx, game, index, result, events); err != nil {
		return result, err
	}
	return result, nil
}

// reconcileReplaced flags game files the game has rewritten since a mod
// replaced them.
func (s *Scanner) reconcileReplaced(game gameconfig.GameInfo, result *Result) {
	replaced, err := s.store.ReplacedMapByGame(game.PackageName)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}
	for path, rec := range replaced {
		live := s.ops.MD5(path)
		if live != "" && live != rec.MD5 {
			result.GameUpdated = append(result.GameUpdated, path)
		}
	}
}

// relocate moves every matching candidate under source into the game's
// mod-save directory. The move is verified before the source is considered
// disposed.
func (s *Scanner) relocate(ctx context.Context, source string, game gameconfig.GameInfo, index *assetIndex, result *Result, events chan<- Event) error {
	if tier := s.ops.Resolve(source); tier == access.TierPrivilegedHelper && s.client != nil {
		// The helper enumerates and moves in-process; paths at this tier are
		// not directly readable here.
		res, err := s.client.Call(helper.Request{Op: helper.OpScanMods, Path: source, GameInfo: &game})
		if err == nil && res.OK {
			result.Relocated = append(result.Relocated, res.Names...)
		}
		return nil
	}

	files := s.ops.ListFiles(source)
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(events, Event{Source: source, File: file.Name, Index: i + 1, Total: len(files)})
		if file.IsDir || skipExtensions[strings.ToLower(filepath.Ext(file.Name))] {
			continue
		}
		if !index.candidate(file.Path) {
			continue
		}
		dest := filepath.Join(game.ModSavePath, file.Name)
		if !s.ops.Move(file.Path, dest) || !s.ops.Exists(dest) {
			result.Errors = append(result.Errors, errRelocate(file.Path))
			continue
		}
		logger.Log.Infow("Relocated mod candidate", "from", file.Path, "to", dest)
		result.Relocated = append(result.Relocated, dest)
	}
	return nil
}

// reconcileMods diffs the mod-save directory against the table for this game.
func (s *Scanner) reconcileMods(ctx context.Context, game gameconfig.GameInfo, index *assetIndex, result *Result, events chan<- Event) error {
	known, err := s.store.ModsByGame(game.PackageName)
	if err != nil {
		return err
	}
	byPath := make(map[string]db.Mod, len(known))
	for _, mod := range known {
		byPath[mod.Path] = mod
	}
	present := map[string]bool{}

	files := s.ops.ListFiles(game.ModSavePath)
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(events, Event{Source: game.ModSavePath, File: file.Name, Index: i + 1, Total: len(files)})

		existing, knownPath := byPath[file.Path]
		if knownPath && !s.changed(file) {
			present[file.Path] = true
			result.Unchanged++
			continue
		}

		mod, err := s.readModInfo(file, game, index)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if mod == nil {
			continue
		}
		present[file.Path] = true

		if !knownPath {
			if err := s.store.CreateMod(mod); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Added = append(result.Added, *mod)
		} else if diffFields(existing, *mod) {
			// Update in place: the id and enabled flag survive the refresh.
			mod.ID = existing.ID
			mod.CreatedAt = existing.CreatedAt
			mod.IsEnable = existing.IsEnable
			mod.Password = existing.Password
			if err := s.store.SaveMod(mod); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Updated = append(result.Updated, *mod)
		} else {
			result.Unchanged++
		}
		s.rememberScanFile(file, game.PackageName)
	}

	for path, mod := range byPath {
		if present[path] {
			continue
		}
		if mod.IsEnable {
			result.BlockedDeletes = append(result.BlockedDeletes, mod)
			continue
		}
		if err := s.store.DeleteMod(mod.ID); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		_ = s.store.DeleteScanFile(path)
		result.Removed = append(result.Removed, mod)
	}
	return nil
}

// changed consults the scan cache; a file with the same mtime and size as the
// last pass is skipped without reopening it. A touched mtime with the size
// intact falls back to the cached digest, so a re-downloaded identical archive
// does not force a full re-read.
func (s *Scanner) changed(file access.FileInfo) bool {
	cached, err := s.store.ScanFileByPath(file.Path)
	if err != nil || cached == nil {
		return true
	}
	if cached.ModifyTime == file.ModifyTime && cached.Size == file.Size {
		return false
	}
	if cached.Size == file.Size && cached.MD5 != "" && cached.MD5 == s.ops.MD5(file.Path) {
		// Same content under a new mtime; refresh the cache so the next pass
		// skips the hash again.
		cached.ModifyTime = file.ModifyTime
		if err := s.store.UpsertScanFile(cached); err != nil {
			logger.Log.Warnw("Scan cache update failed", "path", file.Path, "error", err)
		}
		return false
	}
	return true
}

func (s *Scanner) rememberScanFile(file access.FileInfo, gamePackage string) {
	rec := &db.ScanFile{
		Path:            file.Path,
		Name:            file.Name,
		ModifyTime:      file.ModifyTime,
		Size:            file.Size,
		IsDirectory:     file.IsDir,
		MD5:             s.ops.MD5(file.Path),
		GamePackageName: gamePackage,
	}
	if err := s.store.UpsertScanFile(rec); err != nil {
		logger.Log.Warnw("Scan cache update failed", "path", file.Path, "error", err)
	}
}

// diffFields reports whether the refreshed metadata differs from the stored
// record in any field the scanner owns.
func diffFields(old, fresh db.Mod) bool {
	return old.Name != fresh.Name ||
		old.Version != fresh.Version ||
		old.Description != fresh.Description ||
		old.Author != fresh.Author ||
		old.Icon != fresh.Icon ||
		old.ReadmePath != fresh.ReadmePath ||
		old.FileReadmePath != fresh.FileReadmePath ||
		old.IsZipFile != fresh.IsZipFile ||
		old.IsEncrypted != fresh.IsEncrypted ||
		!reflect.DeepEqual(old.ModFiles, fresh.ModFiles) ||
		!reflect.DeepEqual(old.GameFilesPath, fresh.GameFilesPath) ||
		!reflect.DeepEqual(old.Images, fresh.Images)
}

func emit(events chan<- Event, e Event) {
	if events != nil {
		events <- e
	}
}
