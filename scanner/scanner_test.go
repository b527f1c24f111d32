package scanner

import (
	stdzip "archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modlab/access"
	"modlab/db"
	"modlab/gameconfig"
	"modlab/logger"
	"modlab/specialgame"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

type world struct {
	root    string
	scanner *Scanner
	store   *db.Store
	game    gameconfig.GameInfo

	downloadDir string
	modSaveDir  string
	assetDir    string
}

func newWorld(t *testing.T) *world {
	t.Helper()
	root := t.TempDir()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	store := db.NewStore(gdb)

	assetDir := filepath.Join(root, "Android", "data", "com.example.game", "files", "chars")
	downloadDir := filepath.Join(root, "Download")
	modSaveDir := filepath.Join(root, "Mods")
	for _, dir := range []string{assetDir, downloadDir, modSaveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	// The game's own asset the mods will target.
	os.WriteFile(filepath.Join(assetDir, "hero.png"), []byte("game-original"), 0644)

	resolver := access.NewResolver([]string{root}, nil, nil)
	ops := access.NewManager(resolver)

	game := gameconfig.GameInfo{
		GameName:     "Example",
		PackageName:  "com.example.game",
		GamePath:     filepath.Join(root, "Android", "data", "com.example.game"),
		ModSavePath:  modSaveDir,
		GameFilePath: []string{assetDir},
		ModType:      []string{"character"},
		EnableBackup: true,
	}

	s := New(ops, store, specialgame.NewRegistry(), nil, Options{
		IconDir:   filepath.Join(root, "icon"),
		ImagesDir: filepath.Join(root, "images"),
	})
	return &world{
		root:        root,
		scanner:     s,
		store:       store,
		game:        game,
		downloadDir: downloadDir,
		modSaveDir:  modSaveDir,
		assetDir:    assetDir,
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := stdzip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func (w *world) scan(t *testing.T) *Result {
	t.Helper()
	result, err := w.scanner.Scan(context.Background(), []string{w.downloadDir}, w.game, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return result
}

func TestScanRelocatesAndRecords(t *testing.T) {
	w := newWorld(t)
	writeZip(t, filepath.Join(w.downloadDir, "skin.zip"), map[string]string{
		"chars/hero.png": "mod-payload",
		"readme.txt":     "名称：炫酷皮肤\n作者：someone\n版本：1.2",
	})
	// An archive that matches nothing stays where it is.
	writeZip(t, filepath.Join(w.downloadDir, "unrelated.zip"), map[string]string{
		"notes/todo.txt": "x",
	})

	result := w.scan(t)

	if len(result.Relocated) != 1 {
		t.Fatalf("relocated = %v, want just skin.zip", result.Relocated)
	}
	if _, err := os.Stat(filepath.Join(w.downloadDir, "skin.zip")); !os.IsNotExist(err) {
		t.Error("skin.zip still in the download dir after relocation")
	}
	if _, err := os.Stat(filepath.Join(w.downloadDir, "unrelated.zip")); err != nil {
		t.Error("unmatched archive should stay in place")
	}

	if len(result.Added) != 1 {
		t.Fatalf("added = %d mods, want 1", len(result.Added))
	}
	mod := result.Added[0]
	if mod.Name != "炫酷皮肤" || mod.Author != "someone" || mod.Version != "1.2" {
		t.Errorf("readme metadata not applied: %+v", mod)
	}
	if len(mod.ModFiles) != 1 || mod.ModFiles[0] != "chars/hero.png" {
		t.Errorf("ModFiles = %v, want [chars/hero.png]", mod.ModFiles)
	}
	wantTarget := filepath.Join(w.assetDir, "hero.png")
	if len(mod.GameFilesPath) != 1 || mod.GameFilesPath[0] != wantTarget {
		t.Errorf("GameFilesPath = %v, want [%s]", mod.GameFilesPath, wantTarget)
	}
	if mod.ModType != "character" {
		t.Errorf("ModType = %q, want character", mod.ModType)
	}
	if mod.Icon == "" {
		t.Error("first image member should become the icon")
	}
}

func TestRescanOfUnchangedDirIsIdempotent(t *testing.T) {
	w := newWorld(t)
	writeZip(t, filepath.Join(w.downloadDir, "skin.zip"), map[string]string{
		"chars/hero.png": "mod-payload",
	})

	first := w.scan(t)
	if len(first.Added) != 1 {
		t.Fatalf("first pass added %d, want 1", len(first.Added))
	}

	second := w.scan(t)
	if len(second.Added) != 0 || len(second.Updated) != 0 || len(second.Removed) != 0 {
		t.Errorf("second pass = %d added, %d updated, %d removed, want all zero",
			len(second.Added), len(second.Updated), len(second.Removed))
	}
	if second.Unchanged == 0 {
		t.Error("second pass should report the mod as unchanged")
	}
}

func TestTouchedFileWithSameContentIsUnchanged(t *testing.T) {
	w := newWorld(t)
	writeZip(t, filepath.Join(w.downloadDir, "skin.zip"), map[string]string{
		"chars/hero.png": "mod-payload",
	})
	first := w.scan(t)
	if len(first.Added) != 1 {
		t.Fatalf("first pass added %d, want 1", len(first.Added))
	}

	// Re-download of the identical archive: new mtime, same bytes.
	relocated := filepath.Join(w.modSaveDir, "skin.zip")
	touched := time.Now().Add(time.Hour)
	if err := os.Chtimes(relocated, touched, touched); err != nil {
		t.Fatal(err)
	}

	second := w.scan(t)
	if len(second.Updated) != 0 || len(second.Added) != 0 {
		t.Errorf("touched file reported as %d updated, %d added, want unchanged",
			len(second.Updated), len(second.Added))
	}
	if second.Unchanged == 0 {
		t.Error("touched identical file should count as unchanged")
	}

	cached, err := w.store.ScanFileByPath(relocated)
	if err != nil || cached == nil {
		t.Fatalf("scan cache entry missing: %v", err)
	}
	if cached.ModifyTime != touched.Unix() {
		t.Errorf("cached mtime = %d, want refreshed to %d", cached.ModifyTime, touched.Unix())
	}
}

func TestRemovedModsAndBlockedDeletes(t *testing.T) {
	w := newWorld(t)
	writeZip(t, filepath.Join(w.downloadDir, "skin.zip"), map[string]string{
		"chars/hero.png": "mod-payload",
	})
	first := w.scan(t)
	mod := first.Added[0]

	t.Run("enabled mod survives as blocked delete", func(t *testing.T) {
		if err := w.store.SetModEnabled(mod.ID, true); err != nil {
			t.Fatal(err)
		}
		os.Remove(filepath.Join(w.modSaveDir, "skin.zip"))

		result := w.scan(t)
		if len(result.BlockedDeletes) != 1 || result.BlockedDeletes[0].ID != mod.ID {
			t.Fatalf("BlockedDeletes = %v, want the enabled mod", result.BlockedDeletes)
		}
		if len(result.Removed) != 0 {
			t.Error("an enabled mod must not be removed")
		}
		still, err := w.store.GetMod(mod.ID)
		if err != nil || still == nil {
			t.Errorf("enabled mod deleted from the table: %v", err)
		}
	})

	t.Run("disabled mod is removed", func(t *testing.T) {
		if err := w.store.SetModEnabled(mod.ID, false); err != nil {
			t.Fatal(err)
		}
		result := w.scan(t)
		if len(result.Removed) != 1 || result.Removed[0].ID != mod.ID {
			t.Fatalf("Removed = %v, want the stale mod", result.Removed)
		}
	})
}

func TestScanCancellation(t *testing.T) {
	w := newWorld(t)
	writeZip(t, filepath.Join(w.downloadDir, "skin.zip"), map[string]string{
		"chars/hero.png": "mod-payload",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.scanner.Scan(ctx, []string{w.downloadDir}, w.game, nil); err == nil {
		t.Error("cancelled scan should return the context error")
	}
}

func TestGameUpdateDetection(t *testing.T) {
	w := newWorld(t)
	target := filepath.Join(w.assetDir, "hero.png")
	w.store.CreateReplaced(&db.ReplacedFile{
		ModID:           1,
		GameFilePath:    target,
		MD5:             "digest-of-mod-content",
		GamePackageName: w.game.PackageName,
	})

	result := w.scan(t)
	if len(result.GameUpdated) != 1 || result.GameUpdated[0] != target {
		t.Errorf("GameUpdated = %v, want [%s]", result.GameUpdated, target)
	}
}

func TestReadmeParsing(t *testing.T) {
	tests := []struct {
		name string
		text string
		want db.Mod
	}{
		{
			"fullwidth colons",
			"名称：皮肤\n描述：很好看\n作者：张三\n版本：2.0",
			db.Mod{Name: "皮肤", Description: "很好看", Author: "张三", Version: "2.0"},
		},
		{
			"ascii colons english keys",
			"name: Cool Skin\ndescription: shiny\nauthor: someone\nversion: 0.1",
			db.Mod{Name: "Cool Skin", Description: "shiny", Author: "someone", Version: "0.1"},
		},
		{
			"unknown keys ignored",
			"name: X\nhomepage: http://example.com\n\nnot a pair line",
			db.Mod{Name: "X"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mod db.Mod
			applyReadme(&mod, tt.text)
			if mod.Name != tt.want.Name || mod.Description != tt.want.Description ||
				mod.Author != tt.want.Author || mod.Version != tt.want.Version {
				t.Errorf("applyReadme = %+v, want %+v", mod, tt.want)
			}
		})
	}
}

func TestRepeatedFilenamesMatchByParent(t *testing.T) {
	w := newWorld(t)
	// A second asset dir with the same filename.
	otherDir := filepath.Join(w.game.GamePath, "files", "weapons")
	os.MkdirAll(otherDir, 0755)
	os.WriteFile(filepath.Join(otherDir, "hero.png"), []byte("weapon-art"), 0644)

	w.game.GameFilePath = append(w.game.GameFilePath, otherDir)
	w.game.ModType = append(w.game.ModType, "weapon")
	w.game.IsGameFileRepeat = true

	writeZip(t, filepath.Join(w.downloadDir, "weaponskin.zip"), map[string]string{
		"weapons/hero.png": "mod-payload",
	})

	result := w.scan(t)
	if len(result.Added) != 1 {
		t.Fatalf("added = %d, want 1", len(result.Added))
	}
	mod := result.Added[0]
	wantTarget := filepath.Join(otherDir, "hero.png")
	if len(mod.GameFilesPath) != 1 || mod.GameFilesPath[0] != wantTarget {
		t.Errorf("GameFilesPath = %v, want [%s] via parent-dir match", mod.GameFilesPath, wantTarget)
	}
	if mod.ModType != "weapon" {
		t.Errorf("ModType = %q, want weapon", mod.ModType)
	}
}
