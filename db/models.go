package db

import (
	"gorm.io/gorm"
)

// ModForm distinguishes how a mod was packaged and discovered.
type ModForm string

const (
	FormTraditional ModForm = "traditional" // passively discovered archive or loose files
	FormActive      ModForm = "active"      // ships its own mod config
	FormPackaged    ModForm = "packaged"    // bundled unity-resource form
)

// Mod represents one discovered mod in the database.
type Mod struct {
	gorm.Model
	Name        string `gorm:"index:idx_mod_identity"`
	Description string
	Author      string
	Version     string
	Date        int64  // last-modified time of the source at scan time
	Path        string `gorm:"index:idx_mod_identity"` // source archive or loose-file directory
	// ModFiles are payload member paths inside the source; GameFilesPath are
	// the absolute game paths they map onto, index for index.
	ModFiles        []string `gorm:"serializer:json"`
	GameFilesPath   []string `gorm:"serializer:json"`
	Form            ModForm  `gorm:"default:traditional"`
	IsEncrypted     bool
	Password        string
	IsEnable        bool   `gorm:"index:idx_mod_game_enable"`
	IsZipFile       bool   // archive source vs loose files
	GamePackageName string `gorm:"index:idx_mod_identity;index:idx_mod_game_enable"`
	GameModPath     string // target install directory
	ModType         string
	Icon            string
	Images          []string `gorm:"serializer:json"`
	ReadmePath      string
	FileReadmePath  string
}

// Backup is a saved copy of an original game file, keyed by the game file
// path: at most one live backup per path is authoritative at a time.
type Backup struct {
	gorm.Model
	ModID           uint   `gorm:"index"`
	Filename        string
	GamePath        string
	GameFilePath    string `gorm:"index"`
	BackupPath      string
	GamePackageName string
	BackupTime      int64
	CopyTime        int64
	OriginalMD5     string // MD5 of the game file at capture time
	ModFileMD5      string // MD5 of the mod file that replaced it
}

// ReplacedFile records a game file the engine has overwritten, so a later
// scan can detect a game update silently reclaiming the path.
type ReplacedFile struct {
	gorm.Model
	ModID           uint   `gorm:"index"`
	Filename        string
	GameFilePath    string `gorm:"index"`
	MD5             string
	GamePackageName string `gorm:"index"`
	ReplaceTime     int64
}

// ScanFile caches per-path scan state so unchanged files are skipped on the
// next pass.
type ScanFile struct {
	gorm.Model
	Path            string `gorm:"index"`
	Name            string
	ModifyTime      int64
	Size            int64
	IsDirectory     bool
	MD5             string
	GamePackageName string `gorm:"index"`
}
