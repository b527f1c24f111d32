package archive

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/yeka/zip"
	"golang.org/x/text/encoding/simplifiedchinese"

	"modlab/errs"
)

// zipArchive reads zip containers, including ZipCrypto/AES-encrypted ones.
type zipArchive struct {
	reader *zip.ReadCloser
	// names maps re-decoded member names back to the stored entry; ordered
	// keeps the archive's own member order.
	names   map[string]*zip.File
	ordered []string
}

func openZip(path string) (*zipArchive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, errs.ErrArchiveCorrupt
	}
	a := &zipArchive{reader: reader, names: make(map[string]*zip.File, len(reader.File))}
	mojibake := false
	for _, f := range reader.File {
		if nameLooksGarbled(f.Name, f.Flags) {
			mojibake = true
			break
		}
	}
	for _, f := range reader.File {
		name := f.Name
		if mojibake {
			// Stored in a legacy codepage; re-decode every name with the
			// alternate codepage so the whole archive stays consistent.
			if decoded, err := simplifiedchinese.GBK.NewDecoder().String(f.Name); err == nil {
				name = decoded
			}
		}
		a.names[name] = f
		a.ordered = append(a.ordered, name)
	}
	return a, nil
}

// nameLooksGarbled reports a member name that cannot be trusted as UTF-8:
// either the entry never claimed UTF-8 and fails to decode, or decoding left
// replacement runes behind.
func nameLooksGarbled(name string, flags uint16) bool {
	const utf8Flag = 0x800
	if flags&utf8Flag != 0 {
		return false
	}
	return !utf8.ValidString(name) || strings.ContainsRune(name, utf8.RuneError)
}

func (a *zipArchive) List() ([]string, error) {
	names := make([]string, 0, len(a.ordered))
	for _, name := range a.ordered {
		if a.names[name].FileInfo().IsDir() {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (a *zipArchive) Encrypted() (bool, error) {
	for _, f := range a.reader.File {
		if f.IsEncrypted() {
			return true, nil
		}
	}
	return false, nil
}

func (a *zipArchive) Open(member, password string) (io.ReadCloser, error) {
	f, found := a.names[member]
	if !found {
		return nil, errs.ErrMemberNotFound
	}
	if f.IsEncrypted() {
		if password == "" {
			return nil, errs.ErrPasswordRequired
		}
		f.SetPassword(password)
	}
	rc, err := f.Open()
	if err != nil {
		if f.IsEncrypted() {
			return nil, errs.ErrWrongPassword
		}
		return nil, wrapReadErr(err)
	}
	if f.IsEncrypted() {
		// ZipCrypto only fails once payload bytes are read; probe one byte so
		// a wrong password surfaces here instead of mid-extraction.
		return newProbedReader(rc)
	}
	return rc, nil
}

func (a *zipArchive) Close() error { return a.reader.Close() }

// probedReader pre-reads a single byte to force decryption validation.
type probedReader struct {
	rc      io.ReadCloser
	pending []byte
}

func newProbedReader(rc io.ReadCloser) (io.ReadCloser, error) {
	buf := make([]byte, 1)
	n, err := rc.Read(buf)
	if err != nil && err != io.EOF {
		rc.Close()
		return nil, wrapReadErr(err)
	}
	return &probedReader{rc: rc, pending: buf[:n]}, nil
}

func (p *probedReader) Read(buf []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	return p.rc.Read(buf)
}

func (p *probedReader) Close() error { return p.rc.Close() }
