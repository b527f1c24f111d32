// Package errs defines the error kinds shared by the mod lifecycle engine.
// Facade and archive implementations swallow expected failures into negative
// results; everything above them propagates these typed errors.
package errs

import (
	"errors"
	"fmt"
)

// File errors.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrCopyFailed   = errors.New("copy failed")
	ErrMoveFailed   = errors.New("move failed")
	ErrDeleteFailed = errors.New("delete failed")
	ErrWriteFailed  = errors.New("write failed")
	ErrReadFailed   = errors.New("read failed")
	ErrPathInvalid  = errors.New("path invalid")
	ErrNoSpace      = errors.New("no space left")
)

// Permission errors.
var (
	ErrNoPermission      = errors.New("no permission for path")
	ErrHelperUnavailable = errors.New("privileged helper unavailable")
)

// Archive errors.
var (
	ErrArchiveCorrupt    = errors.New("archive corrupt")
	ErrWrongPassword     = errors.New("wrong archive password")
	ErrPasswordRequired  = errors.New("archive password required")
	ErrMemberNotFound    = errors.New("archive member not found")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)

// Mod errors.
var (
	ErrModMalformed      = errors.New("malformed mod metadata")
	ErrModDuplicate      = errors.New("duplicate mod")
	ErrModMissingPayload = errors.New("mod has no payload files")
	ErrModEnabled        = errors.New("mod is enabled")
	ErrGameFileChanged   = errors.New("game file changed externally")
)

// Game config errors.
var ErrGameConfig = errors.New("invalid game config")

// PathError ties a file/permission error kind to the path it failed on.
type PathError struct {
	Op   string
	Path string
	Kind error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
}

func (e *PathError) Unwrap() error { return e.Kind }

// Pathf wraps kind with the operation and path that produced it.
func Pathf(op, path string, kind error) error {
	return &PathError{Op: op, Path: path, Kind: kind}
}

// Numeric codes carried across the privileged helper channel.
const (
	CodeSuccess          = 0
	CodeNoPermission     = -1
	CodeFail             = -2
	CodeNotSupport       = -3
	CodeModNeedPassword  = -6
	CodeGameUpdate       = -9
	CodeHaveEnabledMods  = -8
	CodeHaveConflictMods = -10
)
