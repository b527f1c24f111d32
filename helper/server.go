package helper

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"

	"modlab/archive"
	"modlab/errs"
	"modlab/logger"
)

// Server is the privileged side of the channel. It is expected to run in a
// process with broader filesystem rights than the caller and performs every
// operation with plain OS calls.
type Server struct {
	socketPath string
	listener   net.Listener
}

func NewServer(socketPath string) *Server {
	return &Server{socketPath: socketPath}
}

// Serve accepts connections until Close is called. One goroutine per
// connection; requests within a connection are handled in order.
func (s *Server) Serve() error {
	_ = os.Remove(s.socketPath)
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on helper socket: %w", err)
	}
	s.listener = listener
	logger.Log.Infow("Helper serving", "socket", s.socketPath)
	for {
		conn, err := listener.Accept()
		if err != nil {
			return nil
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	_ = os.Remove(s.socketPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			return
		}
		res := s.handle(req)
		if err := writeFrame(conn, res); err != nil {
			return
		}
	}
}

func ok(res Result) Result {
	res.OK = true
	res.Code = errs.CodeSuccess
	return res
}

func fail(err error) Result {
	return Result{OK: false, Code: errs.CodeFail, Message: err.Error()}
}

// handle never lets an error escape as anything but a typed result.
func (s *Server) handle(req Request) Result {
	switch req.Op {
	case OpDelete:
		if err := os.RemoveAll(req.Path); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpCopy:
		if err := copyFile(req.Path, req.Dest); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpMove:
		if err := moveFile(req.Path, req.Dest); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpListNames:
		names, err := listNames(req.Path)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Names: names})
	case OpWrite:
		if err := os.MkdirAll(req.Path, 0755); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(filepath.Join(req.Path, req.Name), req.Content, 0644); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpExists:
		_, err := os.Stat(req.Path)
		return ok(Result{Bool: err == nil})
	case OpIsFile:
		info, err := os.Stat(req.Path)
		return ok(Result{Bool: err == nil && !info.IsDir()})
	case OpCreateFromStream:
		if err := os.MkdirAll(req.Path, 0755); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(filepath.Join(req.Path, req.Name), req.Content, 0644); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpLastModified:
		info, err := os.Stat(req.Path)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Int: info.ModTime().Unix()})
	case OpRenameDir:
		if err := os.Rename(req.Path, filepath.Join(filepath.Dir(req.Path), req.Name)); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpMkDirs:
		if err := os.MkdirAll(req.Path, 0755); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpReadText:
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Text: string(data)})
	case OpListFiles:
		files, err := listFiles(req.Path)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Files: files})
	case OpMD5:
		sum, err := fileMD5(req.Path)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Text: sum})
	case OpChmod:
		if err := os.Chmod(req.Path, 0777); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	case OpScanMods:
		moved, err := s.scanMods(req)
		if err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true, Names: moved})
	case OpUnzip:
		if err := s.unzip(req); err != nil {
			return fail(err)
		}
		return ok(Result{Bool: true})
	}
	return Result{OK: false, Code: errs.CodeNotSupport, Message: "unknown op " + req.Op}
}

// scanMods relocates archives under req.Path whose members name a known game
// asset into the game's mod-save directory. Mirrors the caller-side scanner
// for paths only this process can read.
func (s *Server) scanMods(req Request) ([]string, error) {
	if req.GameInfo == nil {
		return nil, fmt.Errorf("scanMods requires gameInfo")
	}
	gameFiles := map[string]bool{}
	for _, dir := range req.GameInfo.GameFilePath {
		names, err := listNames(dir)
		if err != nil {
			continue
		}
		for _, n := range names {
			gameFiles[n] = true
		}
	}
	entries, err := os.ReadDir(req.Path)
	if err != nil {
		return nil, err
	}
	var moved []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(req.Path, entry.Name())
		if !archive.IsArchive(full) {
			continue
		}
		members, err := archive.List(full)
		if err != nil {
			continue
		}
		for _, member := range members {
			if gameFiles[filepath.Base(member)] {
				dest := filepath.Join(req.GameInfo.ModSavePath, entry.Name())
				if err := moveFile(full, dest); err == nil {
					moved = append(moved, dest)
				}
				break
			}
		}
	}
	return moved, nil
}

func (s *Server) unzip(req Request) error {
	return archive.ExtractMember(req.Path, req.Member, req.Dest, req.Password)
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

func moveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across devices; fall back to copy then delete.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func listFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
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
	return files, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
