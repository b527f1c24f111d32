package specialgame

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"modlab/access"
	"modlab/archive"
	"modlab/db"
	"modlab/gameconfig"
	"modlab/logger"
)

// checkFilePaths are the resource manifests the game validates downloads and
// hot updates against, relative to its data root.
var checkFilePaths = []string{
	filepath.Join("files", "persistent_res_list.json"),
	filepath.Join("files", "hot_update_list.json"),
}

// Arknights patches the game's asset-bundle check files so replaced bundles
// pass the built-in digest and size validation. The unpatched copy of each
// check file is kept under saveDir before its first patch.
type Arknights struct {
	Base
	ops     access.FileOps
	saveDir string
}

func NewArknights(ops access.FileOps, saveDir string) *Arknights {
	return &Arknights{ops: ops, saveDir: saveDir}
}

func (a *Arknights) Name() string { return "arknights" }

func (a *Arknights) Match(packageName string) bool {
	return matchSubstring(packageName, "hypergryph") || matchSubstring(packageName, "arknights")
}

func (a *Arknights) RecognizesMember(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".ab") || strings.HasSuffix(lower, ".dat")
}

// AfterEnable recomputes digest and size for each placed file and rewrites
// the matching check-file entries.
func (a *Arknights) AfterEnable(game gameconfig.GameInfo, mod *db.Mod) error {
	entries := make(map[string]abEntry, len(mod.GameFilesPath))
	for i, gameFilePath := range mod.GameFilesPath {
		sum := a.ops.MD5(gameFilePath)
		size := fileSize(a.ops, gameFilePath)
		if sum == "" || size < 0 {
			// The placed copy may sit behind a tier we cannot read back from;
			// measure the payload straight out of the source archive.
			member := memberFor(mod, i)
			var err error
			sum, size, err = archiveDigest(mod.Path, member, mod.Password)
			if err != nil {
				return fmt.Errorf("digest %s: %w", gameFilePath, err)
			}
		}
		entries[filepath.Base(gameFilePath)] = abEntry{md5: sum, size: size}
	}
	return a.patchCheckFiles(game, entries)
}

// BeforeDisable rewrites the check files back to the original digests held by
// the backup records, before the files themselves are restored.
func (a *Arknights) BeforeDisable(game gameconfig.GameInfo, mod *db.Mod, backups []db.Backup) error {
	entries := make(map[string]abEntry, len(backups))
	for _, b := range backups {
		size := fileSize(a.ops, b.BackupPath)
		if size < 0 {
			return fmt.Errorf("backup missing for %s", b.GameFilePath)
		}
		entries[filepath.Base(b.GameFilePath)] = abEntry{md5: b.OriginalMD5, size: size}
	}
	return a.patchCheckFiles(game, entries)
}

type abEntry struct {
	md5  string
	size int64
}

// savePristine keeps the first unpatched copy of a check file so the game's
// own bookkeeping can be inspected or put back by hand.
func (a *Arknights) savePristine(game gameconfig.GameInfo, path, text string) {
	if a.saveDir == "" {
		return
	}
	dir := filepath.Join(a.saveDir, game.PackageName)
	if a.ops.Exists(filepath.Join(dir, filepath.Base(path))) {
		return
	}
	if !a.ops.Write(dir, filepath.Base(path), []byte(text)) {
		logger.Log.Warnw("Pristine check file copy failed", "path", path)
	}
}

// patchCheckFiles rewrites abInfos entries by name match, leaving every other
// field and entry untouched.
func (a *Arknights) patchCheckFiles(game gameconfig.GameInfo, entries map[string]abEntry) error {
	for _, rel := range checkFilePaths {
		path := filepath.Join(game.GamePath, rel)
		text := a.ops.ReadText(path)
		if text == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			logger.Log.Warnw("Check file is not valid JSON", "path", path, "error", err)
			continue
		}
		infos, found := doc["abInfos"].([]any)
		if !found {
			continue
		}
		patched := 0
		for _, raw := range infos {
			info, isMap := raw.(map[string]any)
			if !isMap {
				continue
			}
			name, _ := info["name"].(string)
			entry, wanted := entries[filepath.Base(name)]
			if !wanted {
				continue
			}
			info["md5"] = entry.md5
			info["totalSize"] = entry.size
			if _, has := info["abSize"]; has {
				info["abSize"] = entry.size
			}
			patched++
		}
		if patched == 0 {
			continue
		}
		a.savePristine(game, path, text)
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if !a.ops.Write(filepath.Dir(path), filepath.Base(path), data) {
			return fmt.Errorf("write check file %s failed", path)
		}
		logger.Log.Infow("Patched check file", "path", path, "entries", patched)
	}
	return nil
}

// memberFor returns the payload member backing target path index i.
func memberFor(mod *db.Mod, i int) string {
	if i < len(mod.ModFiles) {
		return mod.ModFiles[i]
	}
	return ""
}

// archiveDigest streams one member out of the mod source and measures it.
func archiveDigest(path, member, password string) (string, int64, error) {
	stream, err := archive.OpenMember(path, member, password)
	if err != nil {
		return "", 0, err
	}
	defer stream.Close()
	h := md5.New()
	size, err := io.Copy(h, stream)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func fileSize(ops access.FileOps, path string) int64 {
	for _, f := range ops.ListFiles(filepath.Dir(path)) {
		if f.Name == filepath.Base(path) {
			return f.Size
		}
	}
	return -1
}
