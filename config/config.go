package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	StorageRoot  string `mapstructure:"STORAGE_ROOT"`
	ModSourceDir string `mapstructure:"MOD_SOURCE_DIR"` // relative to StorageRoot
	DownloadDir  string `mapstructure:"DOWNLOAD_DIR"`   // relative to StorageRoot
	ReceiveDir   string `mapstructure:"RECEIVE_DIR"`    // messaging-app receive folder, relative
	HelperSocket string `mapstructure:"HELPER_SOCKET"`
	GrantedTrees []string `mapstructure:"-"` // parsed from GRANTED_TREES
	DatabasePath string   `mapstructure:"-"` // derived

	// Derived per-app area under StorageRoot.
	AppPath           string `mapstructure:"-"`
	BackupPath        string `mapstructure:"-"`
	TempPath          string `mapstructure:"-"`
	UnzipPath         string `mapstructure:"-"`
	IconPath          string `mapstructure:"-"`
	ImagesPath        string `mapstructure:"-"`
	GameCheckFilePath string `mapstructure:"-"`
	GameConfigPath    string `mapstructure:"-"`
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()

	for _, key := range []string{
		"STORAGE_ROOT", "MOD_SOURCE_DIR", "DOWNLOAD_DIR",
		"RECEIVE_DIR", "HELPER_SOCKET", "GRANTED_TREES",
	} {
		if bindErr := viper.BindEnv(strings.ToLower(key), key); bindErr != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", bindErr)
		}
	}

	if vipErr = viper.Unmarshal(&config); vipErr != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vipErr)
	}

	if config.StorageRoot == "" {
		slog.Error("STORAGE_ROOT is not set")
		return Config{}, fmt.Errorf("STORAGE_ROOT is required")
	}
	if config.ModSourceDir == "" {
		config.ModSourceDir = "Download/Mods"
	}
	if config.DownloadDir == "" {
		config.DownloadDir = "Download"
	}
	if config.HelperSocket == "" {
		config.HelperSocket = filepath.Join(os.TempDir(), "modlab-helper.sock")
	}
	if trees := viper.GetString("GRANTED_TREES"); trees != "" {
		for _, tree := range strings.Split(trees, ",") {
			tree = strings.TrimSpace(tree)
			if tree != "" {
				config.GrantedTrees = append(config.GrantedTrees, config.FullPath(tree))
			}
		}
	}

	config.AppPath = filepath.Join(config.StorageRoot, "Android", "data", "modlab")
	config.BackupPath = filepath.Join(config.AppPath, "backup")
	config.TempPath = filepath.Join(config.AppPath, "temp")
	config.UnzipPath = filepath.Join(config.AppPath, "temp", "unzip")
	config.IconPath = filepath.Join(config.AppPath, "icon")
	config.ImagesPath = filepath.Join(config.AppPath, "images")
	config.GameCheckFilePath = filepath.Join(config.AppPath, "gameCheckFile")
	config.GameConfigPath = filepath.Join(config.AppPath, "GameConfig")

	for _, dir := range []string{
		config.AppPath, config.BackupPath, config.TempPath, config.UnzipPath,
		config.IconPath, config.ImagesPath, config.GameCheckFilePath, config.GameConfigPath,
		config.FullPath(config.ModSourceDir),
	} {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			slog.Error("Failed to create app directory", "path", dir, "error", mkErr)
			return Config{}, mkErr
		}
	}

	// Keep the database next to the rest of the app data for portability.
	config.DatabasePath = filepath.Join(config.AppPath, "mods.db")

	return config, nil
}

// FullPath resolves a storage-root-relative path; absolute paths pass through
// untouched, wherever they point.
func (c Config) FullPath(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.StorageRoot, rel)
}

// ModSourcePath is the user-selected mod folder as an absolute path.
func (c Config) ModSourcePath() string { return c.FullPath(c.ModSourceDir) }

// ScanSources lists every directory the scanner should walk, in order.
func (c Config) ScanSources() []string {
	sources := []string{c.ModSourcePath(), c.FullPath(c.DownloadDir)}
	if c.ReceiveDir != "" {
		sources = append(sources, c.FullPath(c.ReceiveDir))
	}
	return sources
}
