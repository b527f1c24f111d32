// Package helper implements the privileged helper channel: a unix-socket
// protocol mirroring the file operations facade, used when a path is only
// reachable by the separately-privileged helper process. Every call returns a
// typed result carrying a success flag, numeric code, and message — never a
// raw error across the boundary.
package helper

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"modlab/gameconfig"
)

// Operation names understood by the helper server.
const (
	OpDelete           = "delete"
	OpCopy             = "copy"
	OpMove             = "move"
	OpListNames        = "listNames"
	OpWrite            = "write"
	OpExists           = "exists"
	OpIsFile           = "isFile"
	OpCreateFromStream = "createFromStream"
	OpLastModified     = "lastModified"
	OpRenameDir        = "renameDir"
	OpMkDirs           = "mkDirs"
	OpReadText         = "readText"
	OpListFiles        = "listFiles"
	OpMD5              = "md5"
	OpScanMods         = "scanMods"
	OpUnzip            = "unzip"
	OpChmod            = "chmod"
)

// Request is one call across the channel.
type Request struct {
	Op       string               `json:"op"`
	Path     string               `json:"path,omitempty"`
	Dest     string               `json:"dest,omitempty"`
	Name     string               `json:"name,omitempty"`
	Content  []byte               `json:"content,omitempty"`
	Password string               `json:"password,omitempty"`
	Member   string               `json:"member,omitempty"`
	GameInfo *gameconfig.GameInfo `json:"gameInfo,omitempty"`
}

// FileInfo describes one directory entry returned by listFiles.
type FileInfo struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	IsDir      bool   `json:"isDir"`
	ModifyTime int64  `json:"modifyTime"`
}

// Result is the uniform reply envelope.
type Result struct {
	OK      bool       `json:"ok"`
	Code    int        `json:"code"`
	Message string     `json:"message,omitempty"`
	Bool    bool       `json:"bool,omitempty"`
	Text    string     `json:"text,omitempty"`
	Int     int64      `json:"int,omitempty"`
	Names   []string   `json:"names,omitempty"`
	Files   []FileInfo `json:"files,omitempty"`
}

const maxFrame = 64 << 20 // archives stream member-at-a-time, not whole files

// writeFrame sends one length-prefixed JSON message.
func writeFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame receives one length-prefixed JSON message into v.
func readFrame(r io.Reader, v any) error {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(size[:])
	if n > maxFrame {
		return fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
