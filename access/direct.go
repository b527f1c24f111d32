package access

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"modlab/logger"
)

// directOps performs every operation with plain OS calls. It is the tier for
// paths the process can already read and write.
type directOps struct{}

// NewDirect returns the unprivileged OS-call tier.
func NewDirect() FileOps { return directOps{} }

func (directOps) Delete(path string) bool {
	if err := os.RemoveAll(path); err != nil {
		logger.Log.Errorw("Delete failed", "path", path, "error", err)
		return false
	}
	return true
}

func (directOps) Copy(src, dst string) bool {
	if err := copyFile(src, dst); err != nil {
		logger.Log.Errorw("Copy failed", "src", src, "dst", dst, "error", err)
		return false
	}
	return true
}

func (directOps) Move(src, dst string) bool {
	if src == dst {
		return true
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		logger.Log.Errorw("Move failed", "src", src, "dst", dst, "error", err)
		return false
	}
	if err := os.Rename(src, dst); err == nil {
		return true
	}
	// Rename fails across devices; copy then delete.
	if err := copyFile(src, dst); err != nil {
		logger.Log.Errorw("Move failed", "src", src, "dst", dst, "error", err)
		return false
	}
	if err := os.Remove(src); err != nil {
		logger.Log.Errorw("Move left source behind", "src", src, "error", err)
		return false
	}
	return true
}

func (directOps) ListNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Log.Errorw("ListNames failed", "dir", dir, "error", err)
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func (d directOps) Write(dir, name string, content []byte) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Log.Errorw("Write failed", "dir", dir, "error", err)
		return false
	}
	if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
		logger.Log.Errorw("Write failed", "dir", dir, "name", name, "error", err)
		return false
	}
	return true
}

func (directOps) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (directOps) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (directOps) CreateFromStream(dir, name string, r io.Reader) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Log.Errorw("CreateFromStream failed", "dir", dir, "error", err)
		return false
	}
	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	if err != nil {
		logger.Log.Errorw("CreateFromStream failed", "path", target, "error", err)
		return false
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(target)
		logger.Log.Errorw("CreateFromStream failed", "path", target, "error", err)
		return false
	}
	if err := out.Close(); err != nil {
		logger.Log.Errorw("CreateFromStream failed", "path", target, "error", err)
		return false
	}
	return true
}

func (directOps) LastModified(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.ModTime().Unix()
}

func (directOps) RenameDir(path, newName string) bool {
	dst := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, dst); err != nil {
		logger.Log.Errorw("RenameDir failed", "path", path, "newName", newName, "error", err)
		return false
	}
	return true
}

func (directOps) MkDirs(path string) bool {
	if err := os.MkdirAll(path, 0755); err != nil {
		logger.Log.Errorw("MkDirs failed", "path", path, "error", err)
		return false
	}
	return true
}

func (directOps) ReadText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Log.Errorw("ReadText failed", "path", path, "error", err)
		return ""
	}
	return string(data)
}

func (directOps) ListFiles(dir string) []FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Log.Errorw("ListFiles failed", "dir", dir, "error", err)
		return nil
	}
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:       entry.Name(),
			Path:       filepath.Join(dir, entry.Name()),
			Size:       info.Size(),
			IsDir:      entry.IsDir(),
			ModifyTime: info.ModTime().Unix(),
		})
	}
	return files
}

func (directOps) MD5(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
