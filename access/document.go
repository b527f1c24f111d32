package access

import (
	"io"
	"path/filepath"
	"strings"

	"modlab/logger"
)

// documentOps restricts the direct tier to paths under directories the user
// has explicitly granted. An operation outside every grant fails instead of
// leaking into arbitrary filesystem access.
type documentOps struct {
	grants []string
	direct FileOps
}

// NewDocument returns a tier limited to the granted directory trees.
func NewDocument(grants []string) FileOps {
	cleaned := make([]string, 0, len(grants))
	for _, g := range grants {
		cleaned = append(cleaned, filepath.Clean(g))
	}
	return &documentOps{grants: cleaned, direct: NewDirect()}
}

// granted reports whether path sits under one of the granted trees.
func (d *documentOps) granted(path string) bool {
	path = filepath.Clean(path)
	for _, g := range d.grants {
		if path == g || strings.HasPrefix(path, g+string(filepath.Separator)) {
			return true
		}
	}
	logger.Log.Warnw("Path outside granted trees", "path", path)
	return false
}

func (d *documentOps) Delete(path string) bool {
	return d.granted(path) && d.direct.Delete(path)
}

func (d *documentOps) Copy(src, dst string) bool {
	return d.granted(src) && d.granted(dst) && d.direct.Copy(src, dst)
}

func (d *documentOps) Move(src, dst string) bool {
	return d.granted(src) && d.granted(dst) && d.direct.Move(src, dst)
}

func (d *documentOps) ListNames(dir string) []string {
	if !d.granted(dir) {
		return nil
	}
	return d.direct.ListNames(dir)
}

func (d *documentOps) Write(dir, name string, content []byte) bool {
	return d.granted(dir) && d.direct.Write(dir, name, content)
}

func (d *documentOps) Exists(path string) bool {
	return d.granted(path) && d.direct.Exists(path)
}

func (d *documentOps) IsFile(path string) bool {
	return d.granted(path) && d.direct.IsFile(path)
}

func (d *documentOps) CreateFromStream(dir, name string, r io.Reader) bool {
	return d.granted(dir) && d.direct.CreateFromStream(dir, name, r)
}

func (d *documentOps) LastModified(path string) int64 {
	if !d.granted(path) {
		return -1
	}
	return d.direct.LastModified(path)
}

func (d *documentOps) RenameDir(path, newName string) bool {
	return d.granted(path) && d.direct.RenameDir(path, newName)
}

func (d *documentOps) MkDirs(path string) bool {
	return d.granted(path) && d.direct.MkDirs(path)
}

func (d *documentOps) ReadText(path string) string {
	if !d.granted(path) {
		return ""
	}
	return d.direct.ReadText(path)
}

func (d *documentOps) ListFiles(dir string) []FileInfo {
	if !d.granted(dir) {
		return nil
	}
	return d.direct.ListFiles(dir)
}

func (d *documentOps) MD5(path string) string {
	if !d.granted(path) {
		return ""
	}
	return d.direct.MD5(path)
}
