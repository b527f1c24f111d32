package db

import (
	"errors"

	"gorm.io/gorm"
)

// Store wraps a gorm handle with the queries the engine needs. Components
// share one Store; the orchestrator's per-mod serialization is what keeps
// concurrent writers off the same record.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store { return &Store{db: gdb} }

// Default returns a Store over the process-wide database.
func Default() *Store { return &Store{db: DB} }

func (s *Store) DB() *gorm.DB { return s.db }

// --- mods ---

// FindMod looks a record up by its (path, name, game) identity.
func (s *Store) FindMod(path, name, gamePackage string) (*Mod, error) {
	var mod Mod
	err := s.db.Where("path = ? AND name = ? AND game_package_name = ?", path, name, gamePackage).
		First(&mod).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mod, nil
}

func (s *Store) GetMod(id uint) (*Mod, error) {
	var mod Mod
	if err := s.db.First(&mod, id).Error; err != nil {
		return nil, err
	}
	return &mod, nil
}

func (s *Store) ModsByGame(gamePackage string) ([]Mod, error) {
	var mods []Mod
	err := s.db.Where("game_package_name = ?", gamePackage).Order("id").Find(&mods).Error
	return mods, err
}

func (s *Store) EnabledMods(gamePackage string) ([]Mod, error) {
	var mods []Mod
	err := s.db.Where("game_package_name = ? AND is_enable = ?", gamePackage, true).Find(&mods).Error
	return mods, err
}

func (s *Store) SaveMod(mod *Mod) error { return s.db.Save(mod).Error }

func (s *Store) CreateMod(mod *Mod) error { return s.db.Create(mod).Error }

func (s *Store) SetModEnabled(id uint, enabled bool) error {
	return s.db.Model(&Mod{}).Where("id = ?", id).Update("is_enable", enabled).Error
}

func (s *Store) SetModPassword(id uint, password string) error {
	return s.db.Model(&Mod{}).Where("id = ?", id).Update("password", password).Error
}

// DeleteMod removes a mod and everything owned by it.
func (s *Store) DeleteMod(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mod_id = ?", id).Delete(&Backup{}).Error; err != nil {
			return err
		}
		if err := tx.Where("mod_id = ?", id).Delete(&ReplacedFile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Mod{}, id).Error
	})
}

// --- backups ---

func (s *Store) BackupsByMod(modID uint) ([]Backup, error) {
	var backups []Backup
	err := s.db.Where("mod_id = ?", modID).Find(&backups).Error
	return backups, err
}

// BackupByGameFilePath returns the live backup for a game file path, if any.
func (s *Store) BackupByGameFilePath(gameFilePath string) (*Backup, error) {
	var backup Backup
	err := s.db.Where("game_file_path = ?", gameFilePath).Order("id").First(&backup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

func (s *Store) CreateBackup(backup *Backup) error { return s.db.Create(backup).Error }

func (s *Store) SaveBackup(backup *Backup) error { return s.db.Save(backup).Error }

func (s *Store) DeleteBackup(id uint) error { return s.db.Delete(&Backup{}, id).Error }

// DeleteBackupsByPath invalidates every record for a game file path, used
// when a game update makes the stored original stale.
func (s *Store) DeleteBackupsByPath(gameFilePath string) error {
	return s.db.Where("game_file_path = ?", gameFilePath).Delete(&Backup{}).Error
}

// --- replaced files ---

func (s *Store) ReplacedByPath(gameFilePath string) (*ReplacedFile, error) {
	var rec ReplacedFile
	err := s.db.Where("game_file_path = ?", gameFilePath).Order("id desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReplacedMapByGame returns the newest replacement record per game file path.
func (s *Store) ReplacedMapByGame(gamePackage string) (map[string]ReplacedFile, error) {
	var recs []ReplacedFile
	if err := s.db.Where("game_package_name = ?", gamePackage).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	m := make(map[string]ReplacedFile, len(recs))
	for _, r := range recs {
		m[r.GameFilePath] = r
	}
	return m, nil
}

func (s *Store) CreateReplaced(rec *ReplacedFile) error { return s.db.Create(rec).Error }

func (s *Store) DeleteReplacedByModAndPath(modID uint, gameFilePath string) error {
	return s.db.Where("mod_id = ? AND game_file_path = ?", modID, gameFilePath).
		Delete(&ReplacedFile{}).Error
}

// --- scan cache ---

func (s *Store) ScanFileByPath(path string) (*ScanFile, error) {
	var rec ScanFile
	err := s.db.Where("path = ?", path).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertScanFile refreshes the cache entry for a path.
func (s *Store) UpsertScanFile(rec *ScanFile) error {
	existing, err := s.ScanFileByPath(rec.Path)
	if err != nil {
		return err
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	return s.db.Save(rec).Error
}

func (s *Store) DeleteScanFile(path string) error {
	return s.db.Where("path = ?", path).Delete(&ScanFile{}).Error
}
