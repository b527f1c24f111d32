// Package gameconfig loads and validates the per-game JSON descriptors kept
// under the GameConfig/ directory. A descriptor tells the engine where a game
// lives, which of its asset directories mods may target, and how those
// directories map onto human-readable mod type labels.
package gameconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"modlab/errs"
)

// GameInfo describes one installed game title.
type GameInfo struct {
	GameName    string `json:"gameName"`
	ServiceName string `json:"serviceName"`
	PackageName string `json:"packageName"`
	Version     string `json:"version"`

	// GamePath is the game's data root; ModSavePath is where recognized mod
	// archives are relocated to.
	GamePath    string `json:"gamePath"`
	ModSavePath string `json:"modSavePath"`

	// GameFilePath and ModType are parallel lists: asset directory i holds
	// files of mod type ModType[i].
	GameFilePath []string `json:"gameFilePath"`
	ModType      []string `json:"modType"`

	// AntiTamperFile, when set, is a game text file the engine may overwrite
	// with AntiTamperContent (backed up first).
	AntiTamperFile    string `json:"antiTamperFile"`
	AntiTamperContent string `json:"antiTamperContent"`

	// IsGameFileRepeat means the same filename may legitimately appear in more
	// than one asset directory, so candidates match by parent directory name.
	IsGameFileRepeat bool   `json:"isGameFileRepeat"`
	EnableBackup     bool   `json:"enableBackup"`
	Tips             string `json:"tips"`
}

var packagePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)+$`)

// Check validates a descriptor and rewrites its relative paths against root.
// Every violation maps to errs.ErrGameConfig.
func Check(info GameInfo, root string) (GameInfo, error) {
	if info.GameName == "" {
		return info, fmt.Errorf("%w: gameName must not be empty", errs.ErrGameConfig)
	}
	if info.PackageName == "" {
		return info, fmt.Errorf("%w: packageName must not be empty", errs.ErrGameConfig)
	}
	if !packagePattern.MatchString(info.PackageName) {
		return info, fmt.Errorf("%w: packageName %q is not a valid package name", errs.ErrGameConfig, info.PackageName)
	}
	if info.ServiceName == "" {
		return info, fmt.Errorf("%w: serviceName must not be empty", errs.ErrGameConfig)
	}
	if info.GamePath == "" {
		return info, fmt.Errorf("%w: gamePath must not be empty", errs.ErrGameConfig)
	}
	if len(info.ModType) == 0 {
		return info, fmt.Errorf("%w: modType must not be empty", errs.ErrGameConfig)
	}
	if len(info.GameFilePath) == 0 {
		return info, fmt.Errorf("%w: gameFilePath must not be empty", errs.ErrGameConfig)
	}
	if len(info.GameFilePath) != len(info.ModType) {
		return info, fmt.Errorf("%w: gameFilePath and modType lists must be the same length", errs.ErrGameConfig)
	}

	info.GamePath = resolve(root, filepath.Join("Android", "data", info.PackageName))
	paths := make([]string, len(info.GameFilePath))
	for i, p := range info.GameFilePath {
		paths[i] = resolve(root, p)
	}
	info.GameFilePath = paths
	if info.ModSavePath != "" {
		info.ModSavePath = resolve(root, info.ModSavePath)
	}
	if info.AntiTamperFile != "" {
		info.AntiTamperFile = resolve(root, info.AntiTamperFile)
	}
	return info, nil
}

func resolve(root, p string) string {
	if strings.HasPrefix(p, root) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// LoadAll reads every *.json descriptor under dir, validates each against
// root, and returns them keyed in file order. Malformed descriptors are
// returned as a second list of errors rather than aborting the whole load.
func LoadAll(dir, root string) ([]GameInfo, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read game config dir: %w", err)}
	}
	var infos []GameInfo
	var errors []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := LoadFile(filepath.Join(dir, entry.Name()), root)
		if err != nil {
			errors = append(errors, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		infos = append(infos, info)
	}
	return infos, errors
}

// LoadFile reads and validates a single descriptor.
func LoadFile(path, root string) (GameInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GameInfo{}, err
	}
	var info GameInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return GameInfo{}, fmt.Errorf("%w: %v", errs.ErrGameConfig, err)
	}
	return Check(info, root)
}

// WriteFile stores a validated descriptor as <packageName>.json under dir,
// replacing any previous copy.
func WriteFile(info GameInfo, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, info.PackageName+".json"), data, 0644)
}

// Manager keeps the loaded descriptors and the currently selected game.
type Manager struct {
	games    []GameInfo
	selected int
}

func NewManager(games []GameInfo) *Manager {
	return &Manager{games: games, selected: -1}
}

func (m *Manager) Games() []GameInfo { return m.games }

// Select picks the active game by package name.
func (m *Manager) Select(packageName string) (GameInfo, bool) {
	for i, g := range m.games {
		if g.PackageName == packageName {
			m.selected = i
			return g, true
		}
	}
	return GameInfo{}, false
}

// Selected returns the active game, if one has been chosen.
func (m *Manager) Selected() (GameInfo, bool) {
	if m.selected < 0 || m.selected >= len(m.games) {
		return GameInfo{}, false
	}
	return m.games[m.selected], true
}

// Upsert replaces the descriptor with the same package name or appends it.
func (m *Manager) Upsert(info GameInfo) {
	for i, g := range m.games {
		if g.PackageName == info.PackageName {
			m.games[i] = info
			return
		}
	}
	m.games = append(m.games, info)
}
