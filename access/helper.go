package access

import (
	"io"

	"modlab/helper"
	"modlab/logger"
)

// helperOps forwards every operation across the privileged helper channel.
type helperOps struct {
	client *helper.Client
}

// NewHelper returns the tier backed by the helper process.
func NewHelper(client *helper.Client) FileOps {
	return &helperOps{client: client}
}

// call sends one request and folds transport failures into an unsuccessful
// result, matching the boolean contract of the facade.
func (h *helperOps) call(req helper.Request) helper.Result {
	res, err := h.client.Call(req)
	if err != nil {
		logger.Log.Errorw("Helper call failed", "op", req.Op, "path", req.Path, "error", err)
		return helper.Result{}
	}
	if !res.OK {
		logger.Log.Errorw("Helper op failed", "op", req.Op, "path", req.Path,
			"code", res.Code, "message", res.Message)
	}
	return res
}

func (h *helperOps) Delete(path string) bool {
	return h.call(helper.Request{Op: helper.OpDelete, Path: path}).OK
}

func (h *helperOps) Copy(src, dst string) bool {
	return h.call(helper.Request{Op: helper.OpCopy, Path: src, Dest: dst}).OK
}

func (h *helperOps) Move(src, dst string) bool {
	return h.call(helper.Request{Op: helper.OpMove, Path: src, Dest: dst}).OK
}

func (h *helperOps) ListNames(dir string) []string {
	return h.call(helper.Request{Op: helper.OpListNames, Path: dir}).Names
}

func (h *helperOps) Write(dir, name string, content []byte) bool {
	return h.call(helper.Request{Op: helper.OpWrite, Path: dir, Name: name, Content: content}).OK
}

func (h *helperOps) Exists(path string) bool {
	res := h.call(helper.Request{Op: helper.OpExists, Path: path})
	return res.OK && res.Bool
}

func (h *helperOps) IsFile(path string) bool {
	res := h.call(helper.Request{Op: helper.OpIsFile, Path: path})
	return res.OK && res.Bool
}

func (h *helperOps) CreateFromStream(dir, name string, r io.Reader) bool {
	// The channel carries whole payloads; stream sources are buffered here.
	content, err := io.ReadAll(r)
	if err != nil {
		logger.Log.Errorw("CreateFromStream read failed", "dir", dir, "name", name, "error", err)
		return false
	}
	return h.call(helper.Request{Op: helper.OpCreateFromStream, Path: dir, Name: name, Content: content}).OK
}

func (h *helperOps) LastModified(path string) int64 {
	res := h.call(helper.Request{Op: helper.OpLastModified, Path: path})
	if !res.OK {
		return -1
	}
	return res.Int
}

func (h *helperOps) RenameDir(path, newName string) bool {
	return h.call(helper.Request{Op: helper.OpRenameDir, Path: path, Name: newName}).OK
}

func (h *helperOps) MkDirs(path string) bool {
	return h.call(helper.Request{Op: helper.OpMkDirs, Path: path}).OK
}

func (h *helperOps) ReadText(path string) string {
	return h.call(helper.Request{Op: helper.OpReadText, Path: path}).Text
}

func (h *helperOps) ListFiles(dir string) []FileInfo {
	res := h.call(helper.Request{Op: helper.OpListFiles, Path: dir})
	files := make([]FileInfo, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, FileInfo{
			Name:       f.Name,
			Path:       f.Path,
			Size:       f.Size,
			IsDir:      f.IsDir,
			ModifyTime: f.ModifyTime,
		})
	}
	return files
}

func (h *helperOps) MD5(path string) string {
	return h.call(helper.Request{Op: helper.OpMD5, Path: path}).Text
}
