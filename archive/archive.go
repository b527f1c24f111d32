// Package archive provides read access to mod packages in zip, 7z, and rar
// form. Formats are detected by magic bytes, not extension; member names that
// were stored in a legacy codepage are re-decoded so lookups match.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"modlab/errs"
)

// Format identifies a supported archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatSevenZip
	FormatRar
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatSevenZip:
		return "7z"
	case FormatRar:
		return "rar"
	}
	return "unknown"
}

// Reader is uniform access to one open archive.
type Reader interface {
	// List returns every member path, directories excluded.
	List() ([]string, error)
	// Open streams one member. The password is ignored for plain members.
	Open(member, password string) (io.ReadCloser, error)
	// Encrypted reports whether any member requires a password.
	Encrypted() (bool, error)
	Close() error
}

// Sniff detects the container format from the file's leading bytes.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()
	var magic [8]byte
	n, err := f.Read(magic[:])
	if err != nil && err != io.EOF {
		return FormatUnknown, err
	}
	head := magic[:n]
	switch {
	case len(head) >= 4 && string(head[:4]) == "PK\x03\x04":
		return FormatZip, nil
	case len(head) >= 6 && string(head[:6]) == "7z\xbc\xaf\x27\x1c":
		return FormatSevenZip, nil
	case len(head) >= 7 && string(head[:7]) == "Rar!\x1a\x07\x00",
		len(head) >= 8 && string(head[:8]) == "Rar!\x1a\x07\x01\x00":
		return FormatRar, nil
	}
	return FormatUnknown, nil
}

// IsArchive reports whether the file is a supported archive container.
func IsArchive(path string) bool {
	format, err := Sniff(path)
	return err == nil && format != FormatUnknown
}

// Open opens an archive with the format chosen by magic bytes.
func Open(path string) (Reader, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatZip:
		return openZip(path)
	case FormatSevenZip:
		return openSevenZip(path)
	case FormatRar:
		return openRar(path)
	}
	return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedFormat, filepath.Base(path))
}

// List returns the member paths of an archive, directories excluded.
func List(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.List()
}

// IsEncrypted reports whether the archive has password-protected members.
func IsEncrypted(path string) (bool, error) {
	r, err := Open(path)
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Encrypted()
}

// OpenMember streams one member out of the archive at path.
func OpenMember(path, member, password string) (io.ReadCloser, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	stream, err := r.Open(member, password)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &memberStream{ReadCloser: stream, owner: r}, nil
}

type memberStream struct {
	io.ReadCloser
	owner Reader
}

func (m *memberStream) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.owner.Close(); err == nil {
		err = cerr
	}
	return err
}

// extractBufSize bounds per-member copy memory; archives are never buffered
// whole.
const extractBufSize = 64 * 1024

// ExtractMember writes one member under destDir, preserving its relative path.
func ExtractMember(path, member, destDir, password string) error {
	stream, err := OpenMember(path, member, password)
	if err != nil {
		return err
	}
	defer stream.Close()
	target := filepath.Join(destDir, filepath.FromSlash(member))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	buf := make([]byte, extractBufSize)
	if _, err := io.CopyBuffer(out, stream, buf); err != nil {
		out.Close()
		_ = os.Remove(target)
		return wrapReadErr(err)
	}
	return out.Close()
}

// ExtractMembers extracts a set of members under destDir; the first failure
// aborts.
func ExtractMembers(path string, members []string, destDir, password string) error {
	for _, member := range members {
		if err := ExtractMember(path, member, destDir, password); err != nil {
			return err
		}
	}
	return nil
}

// ExtractAll unpacks the whole archive under destDir.
func ExtractAll(path, destDir, password string) error {
	members, err := List(path)
	if err != nil {
		return err
	}
	return ExtractMembers(path, members, destDir, password)
}

// wrapReadErr maps decryption failures discovered mid-stream onto the
// password taxonomy so callers can tell a bad password from a broken file.
func wrapReadErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password"), strings.Contains(msg, "authentication"),
		strings.Contains(msg, "decryption"):
		return errs.ErrWrongPassword
	case strings.Contains(msg, "checksum"), strings.Contains(msg, "crc"):
		return errs.ErrArchiveCorrupt
	}
	return err
}
