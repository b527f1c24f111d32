package access

import (
	"io"
	"path/filepath"
	"strings"

	"modlab/helper"
)

// Resolver decides which tier a path needs. Resolution is pure: the same path
// and channel state always yield the same tier, so callers can resolve once
// and hold the answer for a whole operation batch.
type Resolver struct {
	writableRoots []string
	grantedTrees  []string
	client        *helper.Client
}

func NewResolver(writableRoots, grantedTrees []string, client *helper.Client) *Resolver {
	clean := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			out = append(out, filepath.Clean(p))
		}
		return out
	}
	return &Resolver{
		writableRoots: clean(writableRoots),
		grantedTrees:  clean(grantedTrees),
		client:        client,
	}
}

func under(path string, roots []string) bool {
	path = filepath.Clean(path)
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Resolve returns the lowest tier that can reach path. The helper tier is
// offered only while the channel is connected.
func (r *Resolver) Resolve(path string) Tier {
	if under(path, r.writableRoots) {
		return TierDirectFile
	}
	if under(path, r.grantedTrees) {
		return TierDocumentTree
	}
	if r.client != nil && r.client.Connected() {
		return TierPrivilegedHelper
	}
	return TierNone
}

// Manager dispatches each operation to the tier its path resolves to. For
// operations with two paths the higher of the two tiers handles both ends.
type Manager struct {
	resolver *Resolver
	direct   FileOps
	document FileOps
	helper   FileOps
}

func NewManager(resolver *Resolver) *Manager {
	return &Manager{
		resolver: resolver,
		direct:   NewDirect(),
		document: NewDocument(resolver.grantedTrees),
		helper:   NewHelper(resolver.client),
	}
}

// Resolve exposes the tier decision for permission gating.
func (m *Manager) Resolve(path string) Tier { return m.resolver.Resolve(path) }

func (m *Manager) ops(tier Tier) FileOps {
	switch tier {
	case TierDirectFile:
		return m.direct
	case TierDocumentTree:
		return m.document
	case TierPrivilegedHelper:
		return m.helper
	}
	return nil
}

// forPath returns the tier implementation for one path, or nil when the path
// is unreachable.
func (m *Manager) forPath(path string) FileOps {
	return m.ops(m.resolver.Resolve(path))
}

// forPair returns the implementation covering both paths.
func (m *Manager) forPair(a, b string) FileOps {
	ta, tb := m.resolver.Resolve(a), m.resolver.Resolve(b)
	if ta == TierNone || tb == TierNone {
		return nil
	}
	if tb > ta {
		ta = tb
	}
	return m.ops(ta)
}

func (m *Manager) Delete(path string) bool {
	ops := m.forPath(path)
	return ops != nil && ops.Delete(path)
}

func (m *Manager) Copy(src, dst string) bool {
	ops := m.forPair(src, dst)
	return ops != nil && ops.Copy(src, dst)
}

func (m *Manager) Move(src, dst string) bool {
	ops := m.forPair(src, dst)
	return ops != nil && ops.Move(src, dst)
}

func (m *Manager) ListNames(dir string) []string {
	ops := m.forPath(dir)
	if ops == nil {
		return nil
	}
	return ops.ListNames(dir)
}

func (m *Manager) Write(dir, name string, content []byte) bool {
	ops := m.forPath(dir)
	return ops != nil && ops.Write(dir, name, content)
}

func (m *Manager) Exists(path string) bool {
	ops := m.forPath(path)
	return ops != nil && ops.Exists(path)
}

func (m *Manager) IsFile(path string) bool {
	ops := m.forPath(path)
	return ops != nil && ops.IsFile(path)
}

func (m *Manager) CreateFromStream(dir, name string, r io.Reader) bool {
	ops := m.forPath(dir)
	return ops != nil && ops.CreateFromStream(dir, name, r)
}

func (m *Manager) LastModified(path string) int64 {
	ops := m.forPath(path)
	if ops == nil {
		return -1
	}
	return ops.LastModified(path)
}

func (m *Manager) RenameDir(path, newName string) bool {
	ops := m.forPath(path)
	return ops != nil && ops.RenameDir(path, newName)
}

func (m *Manager) MkDirs(path string) bool {
	ops := m.forPath(path)
	return ops != nil && ops.MkDirs(path)
}

func (m *Manager) ReadText(path string) string {
	ops := m.forPath(path)
	if ops == nil {
		return ""
	}
	return ops.ReadText(path)
}

func (m *Manager) ListFiles(dir string) []FileInfo {
	ops := m.forPath(dir)
	if ops == nil {
		return nil
	}
	return ops.ListFiles(dir)
}

func (m *Manager) MD5(path string) string {
	ops := m.forPath(path)
	if ops == nil {
		return ""
	}
	return ops.MD5(path)
}

var _ FileOps = (*Manager)(nil)
