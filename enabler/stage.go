package enabler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"modlab/access"
	"modlab/archive"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
)

func nowUnix() int64 { return time.Now().Unix() }

// stage materializes every payload member under the unzip area and returns
// the map from target game file path to staged file. Staging happens before
// any game file is touched, so a bad archive fails the enable early.
func (o *Orchestrator) stage(ctx context.Context, mod *db.Mod) (map[string]string, error) {
	if len(mod.ModFiles) != len(mod.GameFilesPath) {
		return nil, fmt.Errorf("%w: %s has %d payload files for %d targets",
			errs.ErrModMalformed, mod.Name, len(mod.ModFiles), len(mod.GameFilesPath))
	}
	stageDir := filepath.Join(o.unzipDir, fmt.Sprintf("mod-%d", mod.ID))
	payload := make(map[string]string, len(mod.ModFiles))
	for i, member := range mod.ModFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gameFilePath := mod.GameFilesPath[i]
		if mod.IsZipFile {
			if err := archive.ExtractMember(mod.Path, member, stageDir, mod.Password); err != nil {
				return nil, err
			}
			payload[gameFilePath] = filepath.Join(stageDir, filepath.FromSlash(member))
			continue
		}
		loose := filepath.Join(mod.Path, filepath.FromSlash(member))
		if !o.ops.IsFile(loose) {
			return nil, fmt.Errorf("%w: %s", errs.ErrModMissingPayload, loose)
		}
		payload[gameFilePath] = loose
	}
	return payload, nil
}

// SetAntiTamper flips the game's tamper-check file. Enabling backs the file
// up and writes the configured replacement content; disabling restores the
// backed-up copy.
func (o *Orchestrator) SetAntiTamper(game gameconfig.GameInfo, enable bool) error {
	if game.AntiTamperFile == "" {
		return nil
	}
	if o.ops.Resolve(filepath.Dir(game.AntiTamperFile)) == access.TierNone {
		return errs.Pathf("access", game.AntiTamperFile, errs.ErrNoPermission)
	}
	savedCopy := filepath.Join(o.backupDir, game.PackageName, "antitamper", filepath.Base(game.AntiTamperFile))
	if enable {
		if o.ops.Exists(game.AntiTamperFile) && !o.ops.Exists(savedCopy) {
			if !o.ops.Copy(game.AntiTamperFile, savedCopy) {
				return errs.Pathf("backup", game.AntiTamperFile, errs.ErrCopyFailed)
			}
		}
		if !o.ops.Write(filepath.Dir(game.AntiTamperFile), filepath.Base(game.AntiTamperFile), []byte(game.AntiTamperContent)) {
			return errs.Pathf("write", game.AntiTamperFile, errs.ErrWriteFailed)
		}
		return nil
	}
	if !o.ops.Exists(savedCopy) {
		return nil
	}
	if !o.ops.Copy(savedCopy, game.AntiTamperFile) {
		return errs.Pathf("restore", game.AntiTamperFile, errs.ErrCopyFailed)
	}
	return o.deleteSaved(savedCopy)
}

func (o *Orchestrator) deleteSaved(path string) error {
	if !o.ops.Delete(path) {
		return errs.Pathf("cleanup", path, errs.ErrDeleteFailed)
	}
	return nil
}
