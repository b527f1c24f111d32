package enabler

import (
	stdzip "archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	yekazip "github.com/yeka/zip"

	"modlab/access"
	"modlab/backup"
	"modlab/db"
	"modlab/errs"
	"modlab/gameconfig"
	"modlab/logger"
	"modlab/specialgame"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

type harness struct {
	root  string
	orch  *Orchestrator
	store *db.Store
	ops   *access.Manager
	game  gameconfig.GameInfo

	gameFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	store := db.NewStore(gdb)

	resolver := access.NewResolver([]string{root}, nil, nil)
	ops := access.NewManager(resolver)

	assetDir := filepath.Join(root, "game", "chars")
	os.MkdirAll(assetDir, 0755)
	gameFile := filepath.Join(assetDir, "hero.png")
	os.WriteFile(gameFile, []byte("game-original"), 0644)

	game := gameconfig.GameInfo{
		PackageName:  "com.example.game",
		GamePath:     filepath.Join(root, "game"),
		GameFilePath: []string{assetDir},
		ModType:      []string{"character"},
		EnableBackup: true,
	}

	backupDir := filepath.Join(root, "backup")
	engine := backup.New(ops, store, backupDir)
	orch := New(ops, store, engine, specialgame.NewRegistry(), Options{
		UnzipDir:  filepath.Join(root, "temp", "unzip"),
		BackupDir: backupDir,
	})
	return &harness{root: root, orch: orch, store: store, ops: ops, game: game, gameFile: gameFile}
}

// looseMod creates a directory-form mod whose payload targets the game file.
func (h *harness) looseMod(t *testing.T, name, content string) *db.Mod {
	t.Helper()
	modDir := filepath.Join(h.root, "Mods", name)
	os.MkdirAll(filepath.Join(modDir, "chars"), 0755)
	os.WriteFile(filepath.Join(modDir, "chars", "hero.png"), []byte(content), 0644)

	mod := &db.Mod{
		Name:            name,
		Path:            modDir,
		ModFiles:        []string{"chars/hero.png"},
		GameFilesPath:   []string{h.gameFile},
		GamePackageName: h.game.PackageName,
	}
	if err := h.store.CreateMod(mod); err != nil {
		t.Fatal(err)
	}
	return mod
}

func (h *harness) zipMod(t *testing.T, name, content string) *db.Mod {
	t.Helper()
	modPath := filepath.Join(h.root, "Mods", name+".zip")
	os.MkdirAll(filepath.Dir(modPath), 0755)
	f, err := os.Create(modPath)
	if err != nil {
		t.Fatal(err)
	}
	w := stdzip.NewWriter(f)
	fw, _ := w.Create("chars/hero.png")
	fw.Write([]byte(content))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	mod := &db.Mod{
		Name:            name,
		Path:            modPath,
		ModFiles:        []string{"chars/hero.png"},
		GameFilesPath:   []string{h.gameFile},
		GamePackageName: h.game.PackageName,
		IsZipFile:       true,
	}
	if err := h.store.CreateMod(mod); err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestEnableDisableRoundTrip(t *testing.T) {
	h := newHarness(t)
	mod := h.zipMod(t, "skin", "mod-payload")
	originalMD5 := h.ops.MD5(h.gameFile)
	ctx := context.Background()

	if err := h.orch.Enable(ctx, mod.ID, h.game); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := h.ops.ReadText(h.gameFile); got != "mod-payload" {
		t.Errorf("game file = %q after enable, want mod-payload", got)
	}
	enabled, err := h.store.GetMod(mod.ID)
	if err != nil || !enabled.IsEnable {
		t.Errorf("IsEnable = %v, %v, want true", enabled, err)
	}
	replaced, err := h.store.ReplacedByPath(h.gameFile)
	if err != nil || replaced == nil {
		t.Errorf("replacement not recorded: %v, %v", replaced, err)
	}

	if err := h.orch.Disable(ctx, mod.ID, h.game); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := h.ops.MD5(h.gameFile); got != originalMD5 {
		t.Errorf("game file digest = %q after disable, want the original %q", got, originalMD5)
	}
	disabled, err := h.store.GetMod(mod.ID)
	if err != nil || disabled.IsEnable {
		t.Errorf("IsEnable = %v, %v after disable, want false", disabled, err)
	}
	replaced, _ = h.store.ReplacedByPath(h.gameFile)
	if replaced != nil {
		t.Error("replacement record should be gone after disable")
	}
}

func TestEnableLooseMod(t *testing.T) {
	h := newHarness(t)
	mod := h.looseMod(t, "loose-skin", "loose-payload")

	if err := h.orch.Enable(context.Background(), mod.ID, h.game); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := h.ops.ReadText(h.gameFile); got != "loose-payload" {
		t.Errorf("game file = %q, want loose-payload", got)
	}
}

func TestEnableEncryptedWithoutPassword(t *testing.T) {
	h := newHarness(t)
	mod := h.zipMod(t, "locked", "whatever")
	mod.IsEncrypted = true
	if err := h.store.SaveMod(mod); err != nil {
		t.Fatal(err)
	}
	originalMD5 := h.ops.MD5(h.gameFile)

	err := h.orch.Enable(context.Background(), mod.ID, h.game)
	if !errors.Is(err, errs.ErrPasswordRequired) {
		t.Fatalf("Enable = %v, want ErrPasswordRequired", err)
	}
	if got := h.ops.MD5(h.gameFile); got != originalMD5 {
		t.Error("a password-gated enable must not touch any file")
	}
	still, _ := h.store.GetMod(mod.ID)
	if still.IsEnable {
		t.Error("mod flagged enabled after a gated enable")
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	h := newHarness(t)
	mod := h.zipMod(t, "skin", "mod-payload")
	ctx := context.Background()

	if err := h.orch.Enable(ctx, mod.ID, h.game); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Enable(ctx, mod.ID, h.game); err != nil {
		t.Errorf("second Enable = %v, want nil no-op", err)
	}
	var count int64
	h.store.DB().Model(&db.Backup{}).Count(&count)
	if count != 1 {
		t.Errorf("%d backup records after double enable, want 1", count)
	}
}

func TestDisableBlockedAfterExternalChange(t *testing.T) {
	h := newHarness(t)
	mod := h.zipMod(t, "skin", "mod-payload")
	ctx := context.Background()

	if err := h.orch.Enable(ctx, mod.ID, h.game); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(h.gameFile, []byte("rewritten-by-update"), 0644)

	err := h.orch.Disable(ctx, mod.ID, h.game)
	if !errors.Is(err, errs.ErrGameFileChanged) {
		t.Fatalf("Disable = %v, want ErrGameFileChanged", err)
	}
	still, _ := h.store.GetMod(mod.ID)
	if !still.IsEnable {
		t.Error("mod must stay enabled when the restore is blocked")
	}
}

func TestBatchReportsPerModFailures(t *testing.T) {
	h := newHarness(t)
	good := h.zipMod(t, "good", "payload")
	locked := h.zipMod(t, "locked", "payload")
	locked.IsEncrypted = true
	if err := h.store.SaveMod(locked); err != nil {
		t.Fatal(err)
	}

	result := h.orch.EnableAll(context.Background(), []uint{good.ID, locked.ID}, h.game)
	if len(result.Succeeded) != 1 || result.Succeeded[0] != good.ID {
		t.Errorf("Succeeded = %v, want [%d]", result.Succeeded, good.ID)
	}
	if err, found := result.Failed[locked.ID]; !found || !errors.Is(err, errs.ErrPasswordRequired) {
		t.Errorf("Failed[%d] = %v, want ErrPasswordRequired", locked.ID, result.Failed[locked.ID])
	}
}

// mixedZipMod builds an archive whose first member is stored plain and whose
// second is AES-encrypted, the shape readme-plus-payload mods commonly have.
func (h *harness) mixedZipMod(t *testing.T, password string) *db.Mod {
	t.Helper()
	modPath := filepath.Join(h.root, "Mods", "mixed.zip")
	os.MkdirAll(filepath.Dir(modPath), 0755)
	f, err := os.Create(modPath)
	if err != nil {
		t.Fatal(err)
	}
	w := yekazip.NewWriter(f)
	fw, err := w.Create("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("notes"))
	ew, err := w.Encrypt("chars/hero.png", password, yekazip.AES256Encryption)
	if err != nil {
		t.Fatal(err)
	}
	ew.Write([]byte("locked-payload"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	mod := &db.Mod{
		Name:            "mixed",
		Path:            modPath,
		ModFiles:        []string{"readme.txt", "chars/hero.png"},
		GameFilesPath:   []string{filepath.Join(h.root, "game", "readme.txt"), h.gameFile},
		GamePackageName: h.game.PackageName,
		IsZipFile:       true,
		IsEncrypted:     true,
	}
	if err := h.store.CreateMod(mod); err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestSetPasswordChecksEncryptedMember(t *testing.T) {
	h := newHarness(t)
	mod := h.mixedZipMod(t, "sekrit")

	if err := h.orch.SetPassword(mod.ID, "wrong"); err == nil {
		t.Fatal("a wrong password must be rejected even when the first member is plain")
	}
	still, _ := h.store.GetMod(mod.ID)
	if still.Password != "" {
		t.Error("rejected password was stored")
	}

	if err := h.orch.SetPassword(mod.ID, "sekrit"); err != nil {
		t.Fatalf("SetPassword with the right password: %v", err)
	}
	saved, _ := h.store.GetMod(mod.ID)
	if saved.Password != "sekrit" {
		t.Errorf("stored password = %q", saved.Password)
	}
}

func TestAntiTamperSwitch(t *testing.T) {
	h := newHarness(t)
	tamperFile := filepath.Join(h.game.GamePath, "version.txt")
	os.WriteFile(tamperFile, []byte("stock"), 0644)
	h.game.AntiTamperFile = tamperFile
	h.game.AntiTamperContent = "patched"

	if err := h.orch.SetAntiTamper(h.game, true); err != nil {
		t.Fatalf("SetAntiTamper(on): %v", err)
	}
	if got := h.ops.ReadText(tamperFile); got != "patched" {
		t.Errorf("tamper file = %q, want patched", got)
	}

	if err := h.orch.SetAntiTamper(h.game, false); err != nil {
		t.Fatalf("SetAntiTamper(off): %v", err)
	}
	if got := h.ops.ReadText(tamperFile); got != "stock" {
		t.Errorf("tamper file = %q after restore, want stock", got)
	}
}

func TestMissingPayloadRejected(t *testing.T) {
	h := newHarness(t)
	mod := &db.Mod{
		Name:            "empty",
		Path:            filepath.Join(h.root, "Mods", "empty"),
		GamePackageName: h.game.PackageName,
	}
	if err := h.store.CreateMod(mod); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.Enable(context.Background(), mod.ID, h.game); !errors.Is(err, errs.ErrModMissingPayload) {
		t.Errorf("Enable = %v, want ErrModMissingPayload", err)
	}
}
