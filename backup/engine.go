// Package backup captures original game files before a mod overwrites them
// and restores them afterwards. Backups are keyed by game file path, not by
// mod: the first enable on a path captures the authoritative original and
// later mods on the same path reuse it.
package backup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"modlab/access"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
	"modlab/logger"
)

type Engine struct {
	ops       access.FileOps
	store     *db.Store
	backupDir string
}

func New(ops access.FileOps, store *db.Store, backupDir string) *Engine {
	return &Engine{ops: ops, store: store, backupDir: backupDir}
}

// pathKey derives a stable directory name for one game file path, so files
// with the same base name in different asset directories never collide.
func pathKey(gameFilePath string) string {
	sum := md5.Sum([]byte(gameFilePath))
	return hex.EncodeToString(sum[:])[:8]
}

func (e *Engine) backupPathFor(game gameconfig.GameInfo, gameFilePath string) string {
	return filepath.Join(e.backupDir, game.PackageName, pathKey(gameFilePath), filepath.Base(gameFilePath))
}

// BackupOriginals ensures every path in payload has a valid backup before the
// mod's content goes in. payload maps each target game file path to the
// staged payload file that will replace it.
//
// Reuse rule: an existing record stays authoritative while the live file
// matches either its captured original or the mod content it recorded last.
// Any other live digest means the game updated the file; the old records are
// invalidated and the live file becomes the new original.
func (e *Engine) BackupOriginals(mod *db.Mod, game gameconfig.GameInfo, payload map[string]string) ([]db.Backup, error) {
	now := time.Now().Unix()
	records := make([]db.Backup, 0, len(payload))
	for gameFilePath, stagedPath := range payload {
		payloadMD5 := e.ops.MD5(stagedPath)
		liveMD5 := e.ops.MD5(gameFilePath)

		existing, err := e.store.BackupByGameFilePath(gameFilePath)
		if err != nil {
			return records, err
		}
		if existing != nil {
			if liveMD5 == existing.OriginalMD5 || (existing.ModFileMD5 != "" && liveMD5 == existing.ModFileMD5) {
				existing.ModFileMD5 = payloadMD5
				existing.CopyTime = now
				if err := e.store.SaveBackup(existing); err != nil {
					return records, err
				}
				records = append(records, *existing)
				continue
			}
			// Stale: the game rewrote the file since capture.
			logger.Log.Infow("Backup stale, recapturing", "path", gameFilePath,
				"recorded", existing.OriginalMD5, "live", liveMD5)
			if err := e.store.DeleteBackupsByPath(gameFilePath); err != nil {
				return records, err
			}
		}

		record := db.Backup{
			ModID:           mod.ID,
			Filename:        filepath.Base(gameFilePath),
			GamePath:        game.GamePath,
			GameFilePath:    gameFilePath,
			GamePackageName: game.PackageName,
			BackupTime:      now,
			CopyTime:        now,
			OriginalMD5:     liveMD5,
			ModFileMD5:      payloadMD5,
		}
		if liveMD5 != "" {
			// An empty BackupPath means no original existed; restore deletes.
			record.BackupPath = e.backupPathFor(game, gameFilePath)
			if !e.ops.Copy(gameFilePath, record.BackupPath) {
				return records, errs.Pathf("backup", gameFilePath, errs.ErrCopyFailed)
			}
		}
		if err := e.store.CreateBackup(&record); err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

// RestoreOriginals puts the captured originals back for every path the mod
// touches. The whole restore is verified before anything is written: a live
// file whose digest no longer matches the recorded mod content means some
// other process changed it, and overwriting blindly would destroy that state.
func (e *Engine) RestoreOriginals(mod *db.Mod, game gameconfig.GameInfo, stillClaimed func(gameFilePath string) bool) error {
	type step struct {
		record *db.Backup
		path   string
	}
	var steps []step
	for _, gameFilePath := range mod.GameFilesPath {
		record, err := e.store.BackupByGameFilePath(gameFilePath)
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}
		live := e.ops.MD5(gameFilePath)
		if live != record.ModFileMD5 {
			return fmt.Errorf("%w: %s", errs.ErrGameFileChanged, gameFilePath)
		}
		steps = append(steps, step{record: record, path: gameFilePath})
	}

	for _, st := range steps {
		if st.record.BackupPath == "" {
			if !e.ops.Delete(st.path) {
				return errs.Pathf("restore", st.path, errs.ErrDeleteFailed)
			}
		} else if !e.ops.Copy(st.record.BackupPath, st.path) {
			return errs.Pathf("restore", st.path, errs.ErrCopyFailed)
		}
		if stillClaimed != nil && stillClaimed(st.path) {
			// Another enabled mod references this path; keep the original on
			// file and mark that the live content is no longer mod content.
			st.record.ModFileMD5 = ""
			if err := e.store.SaveBackup(st.record); err != nil {
				return err
			}
			continue
		}
		if err := e.store.DeleteBackup(st.record.ID); err != nil {
			return err
		}
	}
	return nil
}

// BackupsForMod returns the records currently covering the mod's paths.
func (e *Engine) BackupsForMod(mod *db.Mod) ([]db.Backup, error) {
	var backups []db.Backup
	for _, gameFilePath := range mod.GameFilesPath {
		record, err := e.store.BackupByGameFilePath(gameFilePath)
		if err != nil {
			return nil, err
		}
		if record != nil {
			backups = append(backups, *record)
		}
	}
	return backups, nil
}
