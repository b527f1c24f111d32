package specialgame

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"modlab/access"
	"modlab/db"
	"modlab/gameconfig"
	"modlab/logger"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

func newRegistry(t *testing.T) (*Registry, *db.Store) {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	store := db.NewStore(gdb)
	ops := access.NewDirect()
	return NewRegistry(NewArknights(ops, t.TempDir()), NewProjectSnow(ops, store)), store
}

func TestRegistryMatching(t *testing.T) {
	registry, _ := newRegistry(t)

	tests := []struct {
		packageName string
		wantHook    string
	}{
		{"com.hypergryph.arknights", "arknights"},
		{"com.hypergryph.arknights.bilibili", "arknights"},
		{"com.YoStarEN.Arknights", "arknights"},
		{"com.dragonli.projectsnow.lhm", "projectsnow"},
		{"com.example.other", ""},
	}
	for _, tt := range tests {
		t.Run(tt.packageName, func(t *testing.T) {
			hook, found := registry.For(tt.packageName)
			if tt.wantHook == "" {
				if found {
					t.Errorf("For(%q) matched %s, want no match", tt.packageName, hook.Name())
				}
				return
			}
			if !found || hook.Name() != tt.wantHook {
				t.Errorf("For(%q) = %v, %v, want %s", tt.packageName, hook, found, tt.wantHook)
			}
		})
	}
}

func TestRegistryRecognizesMember(t *testing.T) {
	registry, _ := newRegistry(t)

	tests := []struct {
		packageName string
		member      string
		want        bool
	}{
		{"com.hypergryph.arknights", "char_002_amiya.ab", true},
		{"com.hypergryph.arknights", "gamedata/levels.DAT", true},
		{"com.hypergryph.arknights", "preview.png", false},
		{"com.dragonli.projectsnow.lhm", "skin_pack.pak", true},
		{"com.dragonli.projectsnow.lhm", "skin_pack.ab", false},
		{"com.example.other", "anything.ab", false},
	}
	for _, tt := range tests {
		if got := registry.RecognizesMember(tt.packageName, tt.member); got != tt.want {
			t.Errorf("RecognizesMember(%q, %q) = %v, want %v", tt.packageName, tt.member, got, tt.want)
		}
	}
}

func TestArknightsPatchesCheckFiles(t *testing.T) {
	root := t.TempDir()
	filesDir := filepath.Join(root, "files")
	os.MkdirAll(filesDir, 0755)

	// The live bundle the mod replaced.
	bundle := filepath.Join(filesDir, "char_002_amiya.ab")
	os.WriteFile(bundle, []byte("modded-bundle"), 0644)

	checkDoc := map[string]any{
		"versionId": "v1",
		"abInfos": []any{
			map[string]any{"name": "anon/char_002_amiya.ab", "md5": "stale", "totalSize": 1, "abSize": 1},
			map[string]any{"name": "anon/other.ab", "md5": "keep", "totalSize": 9},
		},
	}
	raw, _ := json.Marshal(checkDoc)
	os.WriteFile(filepath.Join(filesDir, "persistent_res_list.json"), raw, 0644)

	ops := access.NewDirect()
	saveDir := t.TempDir()
	hook := NewArknights(ops, saveDir)
	game := gameconfig.GameInfo{PackageName: "com.hypergryph.arknights", GamePath: root}
	mod := &db.Mod{GameFilesPath: []string{bundle}}

	if err := hook.AfterEnable(game, mod); err != nil {
		t.Fatalf("AfterEnable: %v", err)
	}

	// The unpatched copy is kept once, before the first patch.
	saved := filepath.Join(saveDir, game.PackageName, "persistent_res_list.json")
	var pristine map[string]any
	savedData, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("pristine check file copy missing: %v", err)
	}
	if err := json.Unmarshal(savedData, &pristine); err != nil {
		t.Fatalf("pristine copy is not JSON: %v", err)
	}
	if pristine["abInfos"].([]any)[0].(map[string]any)["md5"] != "stale" {
		t.Error("pristine copy should hold the unpatched digest")
	}

	var patched map[string]any
	data, _ := os.ReadFile(filepath.Join(filesDir, "persistent_res_list.json"))
	if err := json.Unmarshal(data, &patched); err != nil {
		t.Fatalf("patched check file is not JSON: %v", err)
	}
	if patched["versionId"] != "v1" {
		t.Error("unrelated top-level field lost")
	}
	infos := patched["abInfos"].([]any)
	amiya := infos[0].(map[string]any)
	wantMD5 := ops.MD5(bundle)
	if amiya["md5"] != wantMD5 {
		t.Errorf("md5 = %v, want %s", amiya["md5"], wantMD5)
	}
	if size, _ := amiya["totalSize"].(float64); int64(size) != int64(len("modded-bundle")) {
		t.Errorf("totalSize = %v, want %d", amiya["totalSize"], len("modded-bundle"))
	}
	if amiya["abSize"] != amiya["totalSize"] {
		t.Error("abSize should follow totalSize when present")
	}
	other := infos[1].(map[string]any)
	if other["md5"] != "keep" {
		t.Error("untouched entry was modified")
	}
}

func TestProjectSnowMergesManifest(t *testing.T) {
	root := t.TempDir()
	filesDir := filepath.Join(root, "files")
	os.MkdirAll(filesDir, 0755)

	existing := map[string]any{
		"version": 3,
		"paks": []any{
			map[string]any{"name": "base.pak", "optional": false},
			map[string]any{"name": "skin_pack.pak", "optional": true},
		},
	}
	raw, _ := json.Marshal(existing)
	os.WriteFile(filepath.Join(filesDir, "manifest.json"), raw, 0644)

	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	store := db.NewStore(gdb)
	mod := &db.Mod{
		Name:            "skinmod",
		Path:            "/mods/skinmod.zip",
		GamePackageName: "com.dragonli.projectsnow.lhm",
		GameFilesPath:   []string{filepath.Join(filesDir, "paks", "skin_pack.pak")},
	}
	if err := store.CreateMod(mod); err != nil {
		t.Fatal(err)
	}
	if err := store.SetModEnabled(mod.ID, true); err != nil {
		t.Fatal(err)
	}

	ops := access.NewDirect()
	hook := NewProjectSnow(ops, store)
	game := gameconfig.GameInfo{PackageName: "com.dragonli.projectsnow.lhm", GamePath: root}

	if err := hook.AfterEnable(game, mod); err != nil {
		t.Fatalf("AfterEnable: %v", err)
	}

	var merged map[string]any
	data, _ := os.ReadFile(filepath.Join(filesDir, "manifest.json"))
	if err := json.Unmarshal(data, &merged); err != nil {
		t.Fatalf("merged manifest is not JSON: %v", err)
	}
	if version, _ := merged["version"].(float64); version != 3 {
		t.Error("unrelated manifest field lost")
	}
	paks := merged["paks"].([]any)
	if len(paks) != 2 {
		t.Fatalf("paks = %v, want the mod entry plus base.pak", paks)
	}
	first := paks[0].(map[string]any)
	if first["name"] != "skin_pack.pak" || first["optional"] != false {
		t.Errorf("mod pak should lead the list as mandatory, got %v", first)
	}
	second := paks[1].(map[string]any)
	if second["name"] != "base.pak" {
		t.Errorf("base pak missing, got %v", second)
	}
}
