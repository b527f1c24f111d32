package archive

import (
	stdzip "archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	yekazip "github.com/yeka/zip"
	"golang.org/x/text/encoding/simplifiedchinese"

	"modlab/errs"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := stdzip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create member %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write member %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func writeEncryptedZip(t *testing.T, path, password string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := yekazip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Encrypt(name, password, yekazip.AES256Encryption)
		if err != nil {
			t.Fatalf("encrypt member %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write member %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestSniff(t *testing.T) {
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "a.bin")
	writeZip(t, zipPath, map[string]string{"x.txt": "x"})

	rawFiles := map[string]struct {
		head []byte
		want Format
	}{
		"sevenzip": {[]byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c, 0, 0}, FormatSevenZip},
		"rar4":     {[]byte{'R', 'a', 'r', '!', 0x1a, 0x07, 0x00, 0xde}, FormatRar},
		"rar5":     {[]byte{'R', 'a', 'r', '!', 0x1a, 0x07, 0x01, 0x00}, FormatRar},
		"text":     {[]byte("hello world"), FormatUnknown},
	}

	t.Run("zip", func(t *testing.T) {
		format, err := Sniff(zipPath)
		if err != nil || format != FormatZip {
			t.Errorf("Sniff(zip) = %v, %v, want FormatZip", format, err)
		}
	})
	for name, tt := range rawFiles {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, tt.head, 0644); err != nil {
				t.Fatal(err)
			}
			format, err := Sniff(path)
			if err != nil || format != tt.want {
				t.Errorf("Sniff(%s) = %v, %v, want %v", name, format, err, tt.want)
			}
		})
	}

	if IsArchive(filepath.Join(dir, "text")) {
		t.Error("IsArchive(text) = true, want false")
	}
	if !IsArchive(zipPath) {
		t.Error("IsArchive(zip) = false, want true")
	}
}

func TestListAndExtract(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "mod.zip")
	writeZip(t, zipPath, map[string]string{
		"chars/hero.png": "payload-bytes",
		"readme.txt":     "名称：test",
	})

	names, err := List(zipPath)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List returned %d members, want 2: %v", len(names), names)
	}

	dest := filepath.Join(dir, "out")
	if err := ExtractMember(zipPath, "chars/hero.png", dest, ""); err != nil {
		t.Fatalf("ExtractMember: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "chars", "hero.png"))
	if err != nil || string(data) != "payload-bytes" {
		t.Errorf("extracted content = %q, %v, want payload-bytes", data, err)
	}

	if _, err := OpenMember(zipPath, "missing.txt", ""); !errors.Is(err, errs.ErrMemberNotFound) {
		t.Errorf("OpenMember(missing) = %v, want ErrMemberNotFound", err)
	}

	all := filepath.Join(dir, "all")
	if err := ExtractAll(zipPath, all, ""); err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(all, "readme.txt")); err != nil {
		t.Errorf("ExtractAll missing readme.txt: %v", err)
	}
}

func TestEncryptedZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, zipPath, "sekrit", map[string]string{"payload.bin": "locked-content"})

	encrypted, err := IsEncrypted(zipPath)
	if err != nil || !encrypted {
		t.Fatalf("IsEncrypted = %v, %v, want true", encrypted, err)
	}

	t.Run("no password", func(t *testing.T) {
		_, err := OpenMember(zipPath, "payload.bin", "")
		if !errors.Is(err, errs.ErrPasswordRequired) {
			t.Errorf("OpenMember without password = %v, want ErrPasswordRequired", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		stream, err := OpenMember(zipPath, "payload.bin", "nope")
		if err == nil {
			// AES may only fail once payload bytes flow.
			_, err = io.ReadAll(stream)
			stream.Close()
		}
		if err == nil {
			t.Fatal("expected an error with the wrong password")
		}
	})

	t.Run("correct password", func(t *testing.T) {
		stream, err := OpenMember(zipPath, "payload.bin", "sekrit")
		if err != nil {
			t.Fatalf("OpenMember: %v", err)
		}
		defer stream.Close()
		data, err := io.ReadAll(stream)
		if err != nil || string(data) != "locked-content" {
			t.Errorf("read = %q, %v, want locked-content", data, err)
		}
	})
}

func TestLegacyCodepageNames(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "legacy.zip")

	wantName := "皮肤/英雄.png"
	gbkName, err := simplifiedchinese.GBK.NewEncoder().String(wantName)
	if err != nil {
		t.Fatalf("encode name: %v", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	w := stdzip.NewWriter(f)
	fw, err := w.CreateHeader(&stdzip.FileHeader{Name: gbkName, NonUTF8: true, Method: stdzip.Deflate})
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	if _, err := fw.Write([]byte("img")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	names, err := List(zipPath)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != wantName {
		t.Fatalf("List = %v, want [%s]", names, wantName)
	}

	stream, err := OpenMember(zipPath, wantName, "")
	if err != nil {
		t.Fatalf("OpenMember(%s): %v", wantName, err)
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil || string(data) != "img" {
		t.Errorf("read = %q, %v, want img", data, err)
	}
}
