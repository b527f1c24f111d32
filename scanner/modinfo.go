package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"modlab/access"
	"modlab/archive"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
	"modlab/specialgame"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// assetIndex answers "which game asset does this member replace". Built once
// per scan from the live asset directory listings.
type assetIndex struct {
	game  gameconfig.GameInfo
	hooks *specialgame.Registry
	// names maps an asset filename to the asset-directory indexes holding it.
	names map[string][]int
}

func newAssetIndex(ops access.FileOps, game gameconfig.GameInfo, hooks *specialgame.Registry) *assetIndex {
	index := &assetIndex{game: game, hooks: hooks, names: map[string][]int{}}
	for i, dir := range game.GameFilePath {
		for _, name := range ops.ListNames(dir) {
			index.names[name] = append(index.names[name], i)
		}
	}
	return index
}

// match returns the asset-directory index a member maps onto, or -1. With
// IsGameFileRepeat the same filename lives in several directories and the
// member's parent directory name decides which one.
func (x *assetIndex) match(member string) int {
	member = path.Clean(filepath.ToSlash(member))
	name := path.Base(member)
	dirs := x.names[name]
	if len(dirs) == 0 {
		return -1
	}
	if x.game.IsGameFileRepeat {
		parent := path.Base(path.Dir(member))
		if parent != "." {
			for _, i := range dirs {
				if filepath.Base(x.game.GameFilePath[i]) == parent {
					return i
				}
			}
			return -1
		}
	}
	return dirs[0]
}

// recognized reports a member claimed by a special-game hook regardless of
// the asset listings.
func (x *assetIndex) recognized(member string) bool {
	return x.hooks != nil && x.hooks.RecognizesMember(x.game.PackageName, member)
}

// candidate reports whether the file at filePath belongs to this game: any
// archive member or the loose filename matches a known asset or a hook claim.
func (x *assetIndex) candidate(filePath string) bool {
	if archive.IsArchive(filePath) {
		members, err := archive.List(filePath)
		if err != nil {
			return false
		}
		for _, member := range members {
			if x.match(member) >= 0 || x.recognized(member) {
				return true
			}
		}
		return false
	}
	name := filepath.Base(filePath)
	return x.match(name) >= 0 || x.recognized(name)
}

func errRelocate(path string) error {
	return errs.Pathf("relocate", path, errs.ErrMoveFailed)
}

// readModInfo builds the mod record for one entry of the mod-save directory.
// Returns nil when the entry is not a mod for this game.
func (s *Scanner) readModInfo(file access.FileInfo, game gameconfig.GameInfo, index *assetIndex) (*db.Mod, error) {
	var members []string
	isArchive := false
	encrypted := false

	if file.IsDir {
		members = s.collectLoose(file.Path, "")
	} else if archive.IsArchive(file.Path) {
		isArchive = true
		var err error
		members, err = archive.List(file.Path)
		if err != nil {
			if errors.Is(err, errs.ErrPasswordRequired) {
				encrypted = true
			} else {
				return nil, errs.Pathf("list", file.Path, err)
			}
		}
		if !encrypted {
			encrypted, _ = archive.IsEncrypted(file.Path)
		}
	} else {
		members = []string{file.Name}
	}

	var modFiles, gameFiles []string
	modType := ""
	for _, member := range members {
		i := index.match(member)
		if i < 0 {
			if !index.recognized(member) {
				continue
			}
			i = 0
		}
		modFiles = append(modFiles, member)
		gameFiles = append(gameFiles, filepath.Join(game.GameFilePath[i], filepath.Base(member)))
		if modType == "" && i < len(game.ModType) {
			modType = game.ModType[i]
		}
	}
	if len(modFiles) == 0 && !encrypted {
		return nil, nil
	}

	mod := &db.Mod{
		Name:            strings.TrimSuffix(file.Name, filepath.Ext(file.Name)),
		Date:            file.ModifyTime,
		Path:            file.Path,
		ModFiles:        modFiles,
		GameFilesPath:   gameFiles,
		Form:            db.FormTraditional,
		IsEncrypted:     encrypted,
		IsZipFile:       isArchive,
		GamePackageName: game.PackageName,
		GameModPath:     game.ModSavePath,
		ModType:         modType,
	}
	if !encrypted {
		s.attachMetadata(mod, file, members, isArchive)
	}
	return mod, nil
}

// collectLoose walks a loose mod directory and returns member paths relative
// to its root.
func (s *Scanner) collectLoose(dir, prefix string) []string {
	var members []string
	for _, entry := range s.ops.ListFiles(dir) {
		rel := path.Join(prefix, entry.Name)
		if entry.IsDir {
			members = append(members, s.collectLoose(entry.Path, rel)...)
			continue
		}
		members = append(members, rel)
	}
	return members
}

// attachMetadata fills name, description, icon and preview images from the
// mod's own content.
func (s *Scanner) attachMetadata(mod *db.Mod, file access.FileInfo, members []string, isArchive bool) {
	for _, member := range members {
		base := strings.ToLower(path.Base(filepath.ToSlash(member)))
		if base == "readme.txt" || base == "readme.md" {
			mod.ReadmePath = member
			text := s.memberText(file.Path, member, isArchive)
			applyReadme(mod, text)
			if !isArchive {
				mod.FileReadmePath = filepath.Join(file.Path, filepath.FromSlash(member))
			}
			break
		}
	}
	for _, member := range members {
		if !imageExtensions[strings.ToLower(path.Ext(member))] {
			continue
		}
		stored := s.storeImage(file.Path, member, isArchive)
		if stored == "" {
			continue
		}
		if mod.Icon == "" {
			mod.Icon = stored
		}
		mod.Images = append(mod.Images, stored)
	}
}

func (s *Scanner) memberText(sourcePath, member string, isArchive bool) string {
	if !isArchive {
		return s.ops.ReadText(filepath.Join(sourcePath, filepath.FromSlash(member)))
	}
	stream, err := archive.OpenMember(sourcePath, member, "")
	if err != nil {
		return ""
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		return ""
	}
	return string(data)
}

// storeImage copies one image member into the images area under a
// digest-prefixed name and returns the stored path.
func (s *Scanner) storeImage(sourcePath, member string, isArchive bool) string {
	var data []byte
	if isArchive {
		stream, err := archive.OpenMember(sourcePath, member, "")
		if err != nil {
			return ""
		}
		var readErr error
		data, readErr = io.ReadAll(stream)
		stream.Close()
		if readErr != nil {
			return ""
		}
	} else {
		text := s.ops.ReadText(filepath.Join(sourcePath, filepath.FromSlash(member)))
		if text == "" {
			return ""
		}
		data = []byte(text)
	}
	sum := md5.Sum(data)
	name := hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(member))
	if !s.ops.Write(s.imagesDir, name, data) {
		return ""
	}
	stored := filepath.Join(s.imagesDir, name)
	// The icon area keeps its own copy so image cleanup cannot orphan icons.
	if s.iconDir != "" {
		_ = s.ops.Write(s.iconDir, name, data)
	}
	return stored
}

// applyReadme parses key-value lines from a mod readme. Both the full-width
// and the ASCII colon are accepted.
func applyReadme(mod *db.Mod, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var key, value string
		if idx := strings.Index(line, "："); idx >= 0 {
			key, value = line[:idx], line[idx+len("："):]
		} else if idx := strings.Index(line, ":"); idx >= 0 {
			key, value = line[:idx], line[idx+1:]
		} else {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "name", "名称":
			mod.Name = value
		case "description", "描述":
			mod.Description = value
		case "author", "作者":
			mod.Author = value
		case "version", "版本":
			mod.Version = value
		}
	}
}
