// Package access routes file operations through one of three tiers: plain OS
// calls for writable paths, grant-checked calls for directories the user has
// explicitly shared, and the privileged helper channel for everything else.
// Operations report success as a boolean and log the cause on failure, so
// callers branch on outcome without unwinding error chains.
package access

import "io"

// Tier is the privilege level required to touch a path. Higher values can do
// everything lower ones can.
type Tier int

const (
	TierNone Tier = iota
	TierDirectFile
	TierDocumentTree
	TierPrivilegedHelper
)

func (t Tier) String() string {
	switch t {
	case TierDirectFile:
		return "direct"
	case TierDocumentTree:
		return "document"
	case TierPrivilegedHelper:
		return "helper"
	}
	return "none"
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name       string
	Path       string
	Size       int64
	IsDir      bool
	ModifyTime int64
}

// FileOps is the uniform operation set every tier implements.
type FileOps interface {
	// Delete removes a file or directory tree.
	Delete(path string) bool
	// Copy overwrites dst with src, creating parent directories.
	Copy(src, dst string) bool
	// Move relocates src to dst, overwriting dst.
	Move(src, dst string) bool
	// ListNames returns the file names directly under dir, sorted.
	ListNames(dir string) []string
	// Write places content at dir/name, creating dir.
	Write(dir, name string, content []byte) bool
	Exists(path string) bool
	IsFile(path string) bool
	// CreateFromStream drains r into dir/name, creating dir.
	CreateFromStream(dir, name string, r io.Reader) bool
	// LastModified returns the mtime in unix seconds, or -1.
	LastModified(path string) int64
	// RenameDir renames path in place to newName.
	RenameDir(path, newName string) bool
	MkDirs(path string) bool
	// ReadText returns the file contents, or "" on failure.
	ReadText(path string) string
	ListFiles(dir string) []FileInfo
	// MD5 returns the lowercase hex digest of the file, or "" on failure.
	MD5(path string) string
}
